// Package textmatch provides deterministic text canonicalization and
// token-overlap similarity scoring for the recognition engine.
//
// Matching is intentionally language-model free: normalization plus token
// set overlap is symmetric, cheap, and explainable, and is robust to word
// order and inflection differences (e.g. case endings) that would defeat
// exact string comparison.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes to NFD, drops combining marks, and
// recomposes. Built once; transform.Transformer values are stateful, so a
// fresh chain is taken per call via transform.String.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes free text for comparison: lower-case, diacritics
// removed, punctuation stripped, whitespace collapsed. It is idempotent and
// never fails; empty input yields an empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)

	if stripped, _, err := transform.String(diacriticStripper, text); err == nil {
		text = stripped
	}
	// On a transform error the lowercased input is kept; punctuation and
	// whitespace handling below still apply.

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Punctuation separates tokens rather than vanishing inside
			// them, so "13b,riga" still splits into two terms.
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
