package textmatch

// DefaultSimilarThreshold is the score at or above which two strings are
// considered similar. Tunable via ScorerConfig, not business logic.
const DefaultSimilarThreshold = 0.5

// ScorerConfig holds tunables for the similarity scorer.
type ScorerConfig struct {
	// SimilarThreshold is the AreSimilar cutoff (default 0.5).
	SimilarThreshold float64
}

// Scorer computes bounded [0,1] token-overlap similarity between strings.
// Scoring is symmetric and deterministic; the same pair always yields the
// same score, which recognition requires for explainability.
type Scorer struct {
	similarThreshold float64
}

// NewScorer creates a scorer with the default similarity threshold.
func NewScorer() *Scorer {
	return NewScorerWithConfig(ScorerConfig{})
}

// NewScorerWithConfig creates a scorer with custom tunables. Zero values
// fall back to defaults.
func NewScorerWithConfig(config ScorerConfig) *Scorer {
	if config.SimilarThreshold <= 0 {
		config.SimilarThreshold = DefaultSimilarThreshold
	}
	return &Scorer{similarThreshold: config.SimilarThreshold}
}

// Score returns the token-overlap similarity of two strings in [0,1].
//
// Both strings are normalized and reduced to term sets. When one set
// contains the other (all core terms of the smaller string overlap), the
// score is 1.0: a record that repeats another's terms plus extra detail
// denotes the same entity. Otherwise the score is the Jaccard index
// |A ∩ B| / |A ∪ B|. Empty term sets score 0.
func (s *Scorer) Score(a, b string) float64 {
	termsA := ExtractTerms(a)
	termsB := ExtractTerms(b)

	if len(termsA) == 0 || len(termsB) == 0 {
		return 0
	}

	intersection := 0
	for term := range termsA {
		if termsB[term] {
			intersection++
		}
	}

	if intersection == len(termsA) || intersection == len(termsB) {
		return 1.0
	}

	union := len(termsA) + len(termsB) - intersection
	return float64(intersection) / float64(union)
}

// AreSimilar reports whether Score(a, b) meets the configured threshold.
func (s *Scorer) AreSimilar(a, b string) bool {
	return s.Score(a, b) >= s.similarThreshold
}
