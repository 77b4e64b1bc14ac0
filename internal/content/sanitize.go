package content

import (
	"regexp"
	"strings"
)

// allowedTags is the sanitizer's tag allowlist. Anything outside it is
// stripped while its inner content is preserved.
var allowedTags = map[string]bool{
	"a": true, "img": true, "p": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"span": true, "div": true, "ul": true, "ol": true, "li": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true,
	"tr": true, "td": true, "th": true, "caption": true, "colgroup": true, "col": true,
	"strong": true, "em": true, "b": true, "i": true, "u": true, "blockquote": true,
}

// allowedAttrs is the attribute allowlist applied to surviving tags.
var allowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true,
	"width": true, "height": true, "style": true,
}

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	elementRe = regexp.MustCompile(`(?s)<(/?)([a-zA-Z][a-zA-Z0-9]*)((?:[^>"']|"[^"]*"|'[^']*')*?)(/?)>`)
	attrRe    = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9-]*)\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
)

// Sanitize strips disallowed tags and attributes from an HTML body.
// Script and style elements are removed together with their contents;
// event-handler attributes and javascript: URLs never survive.
func Sanitize(html string) string {
	s := scriptBlockRe.ReplaceAllString(html, "")
	s = styleBlockRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")

	return elementRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := elementRe.FindStringSubmatch(m)
		closing, name, attrs, selfClose := sub[1], strings.ToLower(sub[2]), sub[3], sub[4]

		if !allowedTags[name] {
			return ""
		}
		if closing == "/" {
			return "</" + name + ">"
		}

		var b strings.Builder
		b.WriteString("<" + name)
		for _, am := range attrRe.FindAllStringSubmatch(attrs, -1) {
			attr := strings.ToLower(am[1])
			if !allowedAttrs[attr] {
				continue
			}
			value := strings.Trim(am[2], `"'`)
			if (attr == "href" || attr == "src") && isScriptURL(value) {
				continue
			}
			b.WriteString(` ` + attr + `="` + value + `"`)
		}
		if selfClose == "/" {
			b.WriteString("/")
		}
		b.WriteString(">")
		return b.String()
	})
}

func isScriptURL(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, " ", "")
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "data:text/html")
}
