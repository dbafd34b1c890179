package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, strips accents and joins the remaining letters and
// digits with single dashes. Purely numeric results get a prefix because a
// numeric identifier is always resolved as an id.
func Slugify(s string) string {
	folded, _, err := transform.String(foldMarks, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	folded = strings.NewReplacer("đ", "d", "ß", "ss", "ø", "o", "æ", "ae").Replace(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug != "" && strings.Trim(slug, "0123456789") == "" {
		slug = "p-" + slug
	}
	return slug
}
