package patterns

import (
	"fmt"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
	"github.com/google/uuid"
)

// ExtractContextPatterns captures the invariant context-shape →
// recommended-approach relation for a successfully completed episode:
// "given this domain/complexity/language, this dominant tool sequence
// worked." Only successful episodes produce a context pattern, since
// the approach being "recommended" must have actually worked.
func ExtractContextPatterns(e *types.Episode) []*types.Pattern {
	if e.Outcome == nil || e.Outcome.Status != types.OutcomeSuccess {
		return nil
	}

	approach := dominantToolSequence(e.Steps)
	if approach == "" {
		return nil
	}

	return []*types.Pattern{{
		ID:                  uuid.NewString(),
		Kind:                types.PatternContextShape,
		ContextShape:        contextShape(e.Context),
		RecommendedApproach: approach,
		SuccessRate:         1.0,
		Context:             e.Context,
		SourceEpisode:       e.EpisodeID,
		CreatedAt:           time.Now(),
	}}
}

func contextShape(c types.TaskContext) string {
	return fmt.Sprintf("%s/%s/%s", c.Domain, c.Language, c.Complexity)
}

// dominantToolSequence mirrors internal/reflection's helper of the same
// name: the most common 2-tool consecutive sequence among successful
// steps. Duplicated rather than imported to keep internal/patterns free
// of a dependency on internal/reflection for one helper.
func dominantToolSequence(steps []types.ExecutionStep) string {
	counts := make(map[string]int)
	var best string
	var bestCount int

	for i := 0; i+1 < len(steps); i++ {
		a, b := steps[i], steps[i+1]
		if !a.Result.IsSuccess() || !b.Result.IsSuccess() {
			continue
		}
		key := a.Tool + " -> " + b.Tool
		counts[key]++
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	return best
}
