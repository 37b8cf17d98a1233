package textmatch

import (
	"strings"
	"unicode/utf8"
)

// minTermLength is the shortest token kept by ExtractTerms. Tokens of two
// characters or fewer carry almost no identifying signal.
const minTermLength = 3

// stopWords is the closed list of articles, conjunctions, and common
// prepositions excluded from term sets. Tokens of length <= 2 are already
// dropped by the length filter, so only longer function words appear here.
var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "nor": true,
	"for": true, "yet": true, "with": true, "from": true,
	"into": true, "onto": true, "over": true, "under": true,
	"about": true, "after": true, "before": true, "between": true,
	"are": true, "was": true, "were": true, "been": true,
	"this": true, "that": true, "these": true, "those": true,
}

// ExtractTerms normalizes the text, tokenizes on whitespace, and returns
// the set of significant terms: duplicates collapsed, stop words and
// tokens shorter than three characters discarded. Empty input yields an
// empty set.
func ExtractTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, token := range strings.Fields(Normalize(text)) {
		if utf8.RuneCountInString(token) < minTermLength {
			continue
		}
		if stopWords[token] {
			continue
		}
		terms[token] = true
	}
	return terms
}
