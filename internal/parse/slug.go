// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import "strings"

// accentFold maps the accented Latin letters seen in the source
// checklists (French and German certification bodies) to their
// unaccented base.
var accentFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c',
}

const maxSlugLength = 60

// Slugify normalizes text into an identifier-safe slug: lowercase,
// accents folded, every run of non-alphanumeric characters collapsed
// to a single underscore, leading and trailing underscores trimmed,
// truncated to 60 characters.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSep := false
	for _, r := range strings.ToLower(text) {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "_")
	}
	return slug
}
