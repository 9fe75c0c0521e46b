// Package voice interprets the text stand-in for spoken commands.
package voice

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is given to posts created by a recognized command.
const DefaultTitle = "Publicación creada por voz"

// Intent identifies what a command asks for.
type Intent string

const IntentSchedulePost Intent = "schedule_post"

type pattern struct {
	intent Intent
	re     *regexp.Regexp
}

// patterns run in order against normalized text; the first match wins.
var patterns = []pattern{
	{IntentSchedulePost, regexp.MustCompile(`\b(programar|programa|programe|programalo|programala)\s+(una\s+|la\s+|mi\s+)?(nueva\s+)?publicacion\b`)},
	{IntentSchedulePost, regexp.MustCompile(`\b(agendar|agenda|agende)\s+(una\s+|la\s+|mi\s+)?(nueva\s+)?publicacion\b`)},
	{IntentSchedulePost, regexp.MustCompile(`\b(crear|crea|cree)\s+(una\s+)?publicacion\s+programada\b`)},
	{IntentSchedulePost, regexp.MustCompile(`\bschedule\s+(a\s+|the\s+|my\s+)?(new\s+)?post\b`)},
}

// Normalize lowercases s, strips diacritics and trims surrounding space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// Match reports the intent of text, if any pattern recognizes it.
func Match(text string) (Intent, bool) {
	n := Normalize(text)
	if n == "" {
		return "", false
	}
	for _, p := range patterns {
		if p.re.MatchString(n) {
			return p.intent, true
		}
	}
	return "", false
}
