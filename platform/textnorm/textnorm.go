// Package textnorm provides the canonical text form used as a join key
// across every dataset and every user-supplied search term.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key returns the canonical form of s: uppercased, diacritics removed,
// periods dropped, internal whitespace collapsed to single spaces and trimmed.
// Key is idempotent: Key(Key(s)) == Key(s).
func Key(s string) string {
	if s == "" {
		return ""
	}

	// Marks are stripped on both sides of ToUpper: some precomposed lowercase
	// letters (ǰ, ΐ) have no single-rune uppercase form and only uppercase
	// once decomposed, while uppercasing can itself yield decomposable runes.
	key := strings.ToUpper(stripMarks(s))
	key = stripMarks(strings.ReplaceAll(key, ".", ""))

	return strings.Join(strings.Fields(key), " ")
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Contains reports whether the canonical form of s contains the canonical form of sub.
// An empty sub never matches.
func Contains(s, sub string) bool {
	k := Key(sub)
	if k == "" {
		return false
	}
	return strings.Contains(Key(s), k)
}

// Column derives a lowercase snake_case column name from a raw header,
// e.g. "Fecha Documento" -> "fecha_documento", "E-Mail" -> "e_mail".
func Column(header string) string {
	key := strings.ToLower(Key(header))
	var b strings.Builder
	b.Grow(len(key))
	lastUnderscore := false
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
