// Package content prepares campaign bodies for delivery: sanitization,
// plain-text derivation, template rendering, and tracking injection.
package content

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoHTML is returned when a message carries no HTML body to derive
// content from.
var ErrNoHTML = errors.New("message has no html body")

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
	"&quot;", `"`,
)

// DeriveText produces a plain-text rendition of an HTML body. Script and
// style blocks are removed with their contents before tag stripping so
// their text never leaks into the output.
func DeriveText(html string) string {
	s := scriptBlockRe.ReplaceAllString(html, " ")
	s = styleBlockRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// EnsureText guarantees the message carries a text body. HTML is required;
// when text is absent it is derived from the HTML, otherwise the message
// passes through unchanged.
func EnsureText(html, text string) (string, error) {
	if html == "" {
		return "", ErrNoHTML
	}
	if text != "" {
		return text, nil
	}
	return DeriveText(html), nil
}
