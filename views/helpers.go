package views

import (
	"bytes"
	"html"
	"net/url"
	"strconv"
)

// htmlBuf accumulates markup; every dynamic value goes through text or
// attr so it is escaped.
type htmlBuf struct {
	bytes.Buffer
}

func (b *htmlBuf) raw(s string) {
	b.WriteString(s)
}

func (b *htmlBuf) text(s string) {
	b.WriteString(html.EscapeString(s))
}

// attr writes ` name="value"` with value escaped.
func (b *htmlBuf) attr(name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteByte('"')
}

func (b *htmlBuf) flag(name string, on bool) {
	if on {
		b.WriteByte(' ')
		b.WriteString(name)
	}
}

// csrfField writes the hidden token input every form carries.
func (b *htmlBuf) csrfField(token string) {
	b.raw(`<input type="hidden" name="_csrf"`)
	b.attr("value", token)
	b.raw(`>`)
}

// formOpen starts a POST form to action.
func (b *htmlBuf) formOpen(action, token string, extra ...string) {
	b.raw(`<form method="post"`)
	b.attr("action", action)
	for i := 0; i+1 < len(extra); i += 2 {
		b.attr(extra[i], extra[i+1])
	}
	b.raw(`>`)
	b.csrfField(token)
}

func (b *htmlBuf) button(label, class string, disabled bool) {
	b.raw(`<button type="submit"`)
	b.attr("class", class)
	b.flag("disabled", disabled)
	b.raw(`>`)
	b.text(label)
	b.raw(`</button>`)
}

// PathEscape wraps url.PathEscape for use in component code.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// TabClass returns CSS classes for a tab link, with active variant.
func TabClass(active bool) string {
	if active {
		return "tab tab-active"
	}
	return "tab"
}

// BannerClass maps a banner kind to its CSS class.
func BannerClass(kind string) string {
	switch kind {
	case "success", "error":
		return "banner banner-" + kind
	}
	return "banner banner-info"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
