package feed

import (
	"html"
	"regexp"
	"strings"
)

var (
	cdataRe      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTagRe   = regexp.MustCompile(`(?i)</?(?:br|p|li|ul|ol|div|h[1-6]|t[rdh]|table|tbody|thead)\b[^>]*/?>`)
	anyTagRe     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s{2,}`)
)

// CleanText turns an XML/HTML-ish fragment into best-effort plain text:
// CDATA unwrapped, entities decoded, block tags converted to a space,
// remaining tags stripped, whitespace collapsed. Never fails; malformed
// markup degrades to whatever text survives the scrub.
func CleanText(raw string) string {
	t := cdataRe.ReplaceAllString(raw, "$1")
	t = commentRe.ReplaceAllString(t, " ")
	t = html.UnescapeString(t)
	t = blockTagRe.ReplaceAllString(t, " ")
	t = anyTagRe.ReplaceAllString(t, "")
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
