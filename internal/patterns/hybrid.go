package patterns

import "github.com/d-o-hub/episodic-memory/internal/types"

// DefaultConfidenceThreshold is the minimum success_rate a candidate
// pattern must carry to survive extraction.
const DefaultConfidenceThreshold = 0.7

// Extractor is the common shape of the four specialized extractors, so
// Hybrid can run them uniformly.
type Extractor func(*types.Episode) []*types.Pattern

// Extractors lists all four specialized extractors in the order Hybrid
// runs them.
func Extractors() []Extractor {
	return []Extractor{
		ExtractToolSequences,
		ExtractDecisionPoints,
		ExtractErrorRecoveries,
		ExtractContextPatterns,
	}
}

// ExtractHybrid runs every specialized extractor over e, discards
// candidates below confidenceThreshold, and returns the survivors
// sorted by success_rate descending (Cluster further dedups if
// enabled).
func ExtractHybrid(e *types.Episode, confidenceThreshold float64) []*types.Pattern {
	var candidates []*types.Pattern
	for _, extract := range Extractors() {
		candidates = append(candidates, extract(e)...)
	}

	kept := make([]*types.Pattern, 0, len(candidates))
	for _, p := range candidates {
		if p.SuccessRate >= confidenceThreshold {
			kept = append(kept, p)
		}
	}

	sortBySuccessRateDesc(kept)
	return kept
}

func sortBySuccessRateDesc(ps []*types.Pattern) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j].SuccessRate > ps[j-1].SuccessRate; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
}
