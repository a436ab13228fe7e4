// Package trigram maintains the inverted index from 3-character title
// shingles to thread identifiers.
package trigram

import "strings"

// Size is the shingle length in runes.
const Size = 3

// Normalize lowercases s and pads it with one space on each side. No other
// folding is applied.
func Normalize(s string) string {
	return " " + strings.ToLower(s) + " "
}

// Shingles returns every overlapping 3-rune window of the normalized text,
// in order and with repeats. A padded text shorter than 3 runes has none.
func Shingles(s string) []string {
	runes := []rune(Normalize(s))
	if len(runes) < Size {
		return nil
	}
	out := make([]string, 0, len(runes)-Size+1)
	for i := 0; i+Size <= len(runes); i++ {
		out = append(out, string(runes[i:i+Size]))
	}
	return out
}

// Distinct returns the unique shingles of s in first-seen order.
func Distinct(shingles []string) []string {
	seen := make(map[string]struct{}, len(shingles))
	out := make([]string, 0, len(shingles))
	for _, sh := range shingles {
		if _, ok := seen[sh]; ok {
			continue
		}
		seen[sh] = struct{}{}
		out = append(out, sh)
	}
	return out
}
