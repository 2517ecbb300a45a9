package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// StudentKey is the roster conflict key: human readable, no hashing, stable
// across reprocessing of the same school/student/year/grade.
func StudentKey(schoolName, studentID, academicYear, gradeName string) string {
	return fmt.Sprintf("%s_%s_%s_%s", strings.TrimSpace(schoolName), studentID, academicYear, gradeName)
}

// AssessmentKeyInput is the normalized-field subset the assessment id is
// derived from. AssessmentDate is expected in ISO form; anything else falls
// back to its first six characters.
type AssessmentKeyInput struct {
	StudentID      string
	AssessmentType string
	AssessmentDate string
	SubjectName    string
	CompetencyName string
	QuestionName   string
}

const maxAssessmentIDLen = 64

var wordToken = regexp.MustCompile(`\w+`)

// AssessmentID builds the deterministic assessment conflict key: student id,
// first three characters of type and subject, a YYMMDD date token, the
// initials of the fully-alphabetic competency words and the first two word
// tokens of the question, uppercased and joined with underscores. When the
// assembled key exceeds 64 characters the question segment is dropped and the
// key rebuilt; the result is always hard-cut to 64. Records differing only in
// question text beyond that limit therefore collide, which downstream
// consumers rely on staying as-is.
func AssessmentID(in AssessmentKeyInput) string {
	shortQuestion := ""
	if words := wordToken.FindAllString(in.QuestionName, -1); len(words) > 0 {
		if len(words) > 2 {
			words = words[:2]
		}
		shortQuestion = strings.Join(words, "_")
	}

	var initials strings.Builder
	for _, word := range strings.Fields(strings.ToUpper(in.CompetencyName)) {
		if isAlphabetic(word) {
			initials.WriteRune([]rune(word)[0])
		}
	}

	dateToken := ""
	if t, err := time.Parse("2006-01-02", in.AssessmentDate); err == nil {
		dateToken = t.Format("060102")
	} else {
		dateToken = firstRunes(in.AssessmentDate, 6)
	}

	parts := []string{
		in.StudentID,
		firstRunes(in.AssessmentType, 3),
		dateToken,
		firstRunes(in.SubjectName, 3),
		initials.String(),
		shortQuestion,
	}

	id := joinKeyParts(parts)
	if len([]rune(id)) > maxAssessmentIDLen && shortQuestion != "" {
		id = joinKeyParts(parts[:len(parts)-1])
	}
	if runes := []rune(id); len(runes) > maxAssessmentIDLen {
		id = string(runes[:maxAssessmentIDLen])
	}
	return id
}

func joinKeyParts(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		p = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p), " ", "_"))
		out = append(out, p)
	}
	return strings.Join(out, "_")
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
