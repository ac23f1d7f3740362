package patterns

import (
	"strings"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
	"github.com/google/uuid"
)

// branchKeywords identify steps whose action exhibits branching
// semantics: the agent is deciding whether to proceed based on some
// condition, rather than just acting.
var branchKeywords = []string{"check", "verify", "validate", "confirm", "ensure"}

// ExtractDecisionPoints finds steps whose action reads as a branching
// check and records their observed outcome as a single-sample
// OutcomeStats. Cluster keeps one pattern per signature and does not
// sum OutcomeStats across the patterns it collapses.
func ExtractDecisionPoints(e *types.Episode) []*types.Pattern {
	var patterns []*types.Pattern

	for _, s := range e.Steps {
		if !isBranchingAction(s.Action) {
			continue
		}
		patterns = append(patterns, decisionPointPattern(e, s))
	}

	return patterns
}

func isBranchingAction(action string) bool {
	lower := strings.ToLower(action)
	for _, kw := range branchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func decisionPointPattern(e *types.Episode, s types.ExecutionStep) *types.Pattern {
	stats := &types.OutcomeStats{TotalCount: 1, AvgDurationSecs: float64(s.LatencyMs) / 1000}
	successRate := 0.0
	if s.Result.IsSuccess() {
		stats.SuccessCount = 1
		successRate = 1.0
	} else {
		stats.FailureCount = 1
	}

	return &types.Pattern{
		ID:            uuid.NewString(),
		Kind:          types.PatternDecisionPoint,
		Condition:     s.Action,
		Action:        s.Tool,
		OutcomeStats:  stats,
		SuccessRate:   successRate,
		Context:       e.Context,
		SourceEpisode: e.EpisodeID,
		CreatedAt:     time.Now(),
	}
}
