package views

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Post descriptions accept a small inline subset: **bold**, *italic*,
// `code` and [links](https://...). Everything else is escaped text.
var (
	reStrong = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reEm     = regexp.MustCompile(`\*([^*]+)\*`)
	reCode   = regexp.MustCompile("`([^`]+)`")
	reLink   = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reBlank  = regexp.MustCompile(`\n\s*\n`)
)

// RichText renders a post description as HTML paragraphs. Blank lines
// separate paragraphs and single newlines become <br>.
func RichText(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range reBlank.Split(s, -1) {
		lines := strings.Split(strings.TrimSpace(para), "\n")
		for i, l := range lines {
			lines[i] = inline(strings.TrimSpace(l))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func inline(s string) string {
	out := html.EscapeString(s)

	// code spans are swapped out first so emphasis never reaches inside them
	var spans []string
	out = reCode.ReplaceAllStringFunc(out, func(m string) string {
		spans = append(spans, "<code>"+reCode.FindStringSubmatch(m)[1]+"</code>")
		return "\x00" + strconv.Itoa(len(spans)-1) + "\x00"
	})
	out = reLink.ReplaceAllStringFunc(out, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := safeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `" rel="noopener noreferrer" target="_blank">` + match[1] + `</a>`
	})
	out = outsideTags(out, func(seg string) string {
		seg = reStrong.ReplaceAllString(seg, "<strong>$1</strong>")
		return reEm.ReplaceAllString(seg, "<em>$1</em>")
	})
	for i, span := range spans {
		out = strings.Replace(out, "\x00"+strconv.Itoa(i)+"\x00", span, 1)
	}
	return out
}

// outsideTags applies fn to the text between tags, leaving attributes alone.
func outsideTags(s string, fn func(string) string) string {
	var b strings.Builder
	for s != "" {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			b.WriteString(fn(s))
			break
		}
		b.WriteString(fn(s[:lt]))
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			b.WriteString(s[lt:])
			break
		}
		b.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return b.String()
}

// safeURL returns an escaped href for http(s) and mailto links, or "" for
// anything else.
func safeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return html.EscapeString(val)
	}
	return ""
}
