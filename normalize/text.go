// Package normalize holds the pure field-canonicalization and key-derivation
// rules shared by the roster and assessment pipelines. Every function is
// idempotent and maps empty input to empty output; nothing here logs or
// touches the clock except through explicit parameters.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText unescapes HTML entities, collapses internal whitespace runs to
// single spaces and trims the ends.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TitleWords capitalizes each whitespace-separated word: first rune upper,
// rest lower.
func TitleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Clean applies CleanText to a nullable field; empty results degrade to nil.
func Clean(p *string) *string {
	if p == nil {
		return nil
	}
	c := CleanText(*p)
	if c == "" {
		return nil
	}
	return &c
}

// CleanTitle is Clean followed by TitleWords, for the human-readable text
// columns (names, subjects, questions, descriptions).
func CleanTitle(p *string) *string {
	c := Clean(p)
	if c == nil {
		return nil
	}
	t := TitleWords(*c)
	return &t
}
