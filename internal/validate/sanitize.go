package validate

import (
	"strings"

	"golang.org/x/net/html"
)

// SanitizeText strips HTML markup from operator-authored text, keeping
// only the text content. Applied at the write boundary so stored
// titles and messages are always plain text.
func SanitizeText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tok.Text())
		}
	}
}
