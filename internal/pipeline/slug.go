package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SubjectSlug converts a subject name into a filesystem-safe directory name
// (e.g. "Jiří Novák" -> "jiri_novak").
func SubjectSlug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)
	name = strings.ToLower(name)

	var b strings.Builder
	lastUnderscore := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "unknown"
	}
	return slug
}
