// Package util provides shared utility functions.
package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen is the longest slug Slugify returns.
const MaxSlugLen = 30

// Slugify converts free text (usually a task description) to a branch-safe
// fragment: lowercase ASCII letters and digits separated by single dashes,
// no leading or trailing dash, at most MaxSlugLen bytes.
//
// Accented Latin letters are folded to their base letter first, so
// "Café crème" becomes "cafe-creme". Anything else that is not [a-z0-9]
// acts as a separator. The result may be empty.
//
// Examples:
//   - "Fix the Bug!! in parser" → "fix-the-bug-in-parser"
//   - "--leading and trailing--" → "leading-and-trailing"
func Slugify(text string) string {
	folded, _, err := transform.String(foldAccents(), text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		// Output is pure ASCII so byte truncation is safe.
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}

// foldAccents strips combining marks after canonical decomposition.
// Transformers are stateful, so a fresh chain is built per call.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
