package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, turning
// "electricidád" into "electricidad".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize prepares free text for keyword matching: lowercase, accents
// stripped, punctuation collapsed to spaces, runs of whitespace collapsed.
// Pure function; malformed UTF-8 falls back to the lowercased input.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))

	if stripped, _, err := transform.String(stripMarks, text); err == nil {
		text = stripped
	}

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// MatchKeyword returns the first keyword of the ordered list found inside
// text, or "" when none matches. Both sides are normalized first, so callers
// can keep accented keywords in the rule table.
func MatchKeyword(text string, keywords []string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}
	for _, kw := range keywords {
		if nkw := Normalize(kw); nkw != "" && strings.Contains(normalized, nkw) {
			return kw
		}
	}
	return ""
}
