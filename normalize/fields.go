package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pre-primary synonyms are matched by substring containment, in order, before
// any numeral extraction runs. A grade string containing "lkg" anywhere is
// JUNIOR KG no matter what else it says.
var prePrimaryGrades = []struct {
	key   string
	value string
}{
	{"nursery", "NURSERY"},
	{"jr kg", "JUNIOR KG"},
	{"jrkg", "JUNIOR KG"},
	{"junior kg", "JUNIOR KG"},
	{"sr kg", "SENIOR KG"},
	{"srkg", "SENIOR KG"},
	{"senior kg", "SENIOR KG"},
	{"j.k.g.", "JUNIOR KG"},
	{"s.k.g.", "SENIOR KG"},
	{"lkg", "JUNIOR KG"},
	{"ukg", "SENIOR KG"},
}

var (
	romanGrade  = regexp.MustCompile(`(?:grade)?\s*(i{1,3}|iv|v|vi{0,3}|ix|x)\b`)
	arabicGrade = regexp.MustCompile(`(?:grade|grdae|graed)?\s*(\d{1,2})\b`)
)

var romanValues = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
	"vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
}

// Grade maps the many observed grade spellings onto canonical tokens:
// pre-primary synonyms first, then Roman numerals I-X, then Arabic numerals
// (including the common "grdae"/"graed" typos), falling back to the
// uppercased input unchanged.
func Grade(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	if g == "" {
		return ""
	}
	for _, p := range prePrimaryGrades {
		if strings.Contains(g, p.key) {
			return p.value
		}
	}
	if m := romanGrade.FindStringSubmatch(g); m != nil {
		if n, ok := romanValues[m[1]]; ok {
			return fmt.Sprintf("GRADE %d", n)
		}
	}
	if m := arabicGrade.FindStringSubmatch(g); m != nil {
		n, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("GRADE %d", n)
	}
	return strings.ToUpper(g)
}

var femaleTokens = map[string]struct{}{
	"f": {}, "female": {}, "femal": {}, "fem": {},
	"girl": {}, "girls": {}, "gril": {}, "gurl": {}, "g": {},
}

var maleTokens = map[string]struct{}{
	"m": {}, "male": {}, "mal": {},
	"boy": {}, "boys": {}, "boi": {}, "b": {},
}

// Gender folds the recorded gender (misspellings included) to "F" or "M".
// Anything unrecognized returns "" and is stored as NULL, never an error.
func Gender(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := femaleTokens[g]; ok {
		return "F"
	}
	if _, ok := maleTokens[g]; ok {
		return "M"
	}
	return ""
}

var trailingDivision = regexp.MustCompile(`\b([A-Za-z]{1,3})\b$`)

// Division extracts the trailing 1-3 letter token from strings like
// "Class 7 - B" or "III-A". Without such a token the trimmed input is
// returned uppercased.
func Division(raw string) string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return ""
	}
	if m := trailingDivision.FindStringSubmatch(d); m != nil {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(d)
}

// Day-first layouts tried in order, mirroring how the source system writes
// dates. ISO forms are accepted so reprocessing already-normalized values is
// a no-op.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses a day-first date string. The second return is false when
// no layout matches; callers degrade the field to NULL and log a warning.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ISODate is ParseDate rendered as "YYYY-MM-DD", nil when unparseable.
func ISODate(raw string) *string {
	t, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

// AcademicYear derives the "YYYY-YYYY" label from the wall clock: from the
// cutover month onward the label is year-(year+1), before it (year-1)-year.
func AcademicYear(now time.Time, cutover time.Month) string {
	y := now.Year()
	if now.Month() >= cutover {
		return fmt.Sprintf("%d-%d", y, y+1)
	}
	return fmt.Sprintf("%d-%d", y-1, y)
}
