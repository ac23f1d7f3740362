// Package reflection deterministically derives a Reflection from a
// completed episode's steps and outcome, in the teacher's
// RetrospectiveAnalyzer idiom: slices are always initialized non-nil
// (arrays, never null) and every heuristic reads back from the step
// trail rather than external state.
package reflection

import (
	"fmt"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// Generate derives a Reflection for a completed episode. e.Outcome must
// be non-nil.
func Generate(e *types.Episode) *types.Reflection {
	successes := identifySuccesses(e)
	improvements := identifyImprovements(e)
	insights := identifyInsights(e)

	return &types.Reflection{
		Successes:    successes,
		Improvements: improvements,
		Insights:     insights,
		GeneratedAt:  time.Now(),
	}
}

func identifySuccesses(e *types.Episode) []string {
	successes := []string{}

	switch e.Outcome.Status {
	case types.OutcomeSuccess:
		successes = append(successes, "task completed successfully")
		if v := e.Outcome.Verdict; v != "" {
			successes = append(successes, v)
		}
	case types.OutcomePartialSuccess:
		for _, c := range e.Outcome.Completed {
			successes = append(successes, "completed: "+c)
		}
	}

	if n := uniqueTools(e.Steps); n >= 3 {
		successes = append(successes, fmt.Sprintf("used %d distinct tools effectively", n))
	}

	if recoveredCount(e.Steps) > 0 {
		successes = append(successes, "recovered from an error mid-task")
	}

	return successes
}

func identifyImprovements(e *types.Episode) []string {
	improvements := []string{}

	switch e.Outcome.Status {
	case types.OutcomeFailure:
		improvements = append(improvements, "task did not complete: "+e.Outcome.Reason)
	case types.OutcomePartialSuccess:
		for _, f := range e.Outcome.Failed {
			improvements = append(improvements, "did not complete: "+f)
		}
	}

	if rate := errorRate(e.Steps); rate > 0.3 {
		improvements = append(improvements, fmt.Sprintf("high step failure rate (%.0f%%); consider verifying preconditions before acting", rate*100))
	}

	if len(e.Steps) > 20 {
		improvements = append(improvements, "task took an unusually large number of steps; consider a more direct approach")
	}

	return improvements
}

func identifyInsights(e *types.Episode) []string {
	insights := []string{}

	if e.Context.Domain != "" && e.Outcome.Status == types.OutcomeSuccess {
		insights = append(insights, fmt.Sprintf("%s tasks in the %s domain can succeed with this step pattern", e.Context.Complexity, e.Context.Domain))
	}

	if seq := dominantToolSequence(e.Steps); seq != "" {
		insights = append(insights, "frequently effective tool sequence: "+seq)
	}

	if len(e.Outcome.Artifacts) > 0 {
		insights = append(insights, fmt.Sprintf("produced %d artifact(s)", len(e.Outcome.Artifacts)))
	}

	return insights
}

func uniqueTools(steps []types.ExecutionStep) int {
	seen := make(map[string]struct{})
	for _, s := range steps {
		seen[s.Tool] = struct{}{}
	}
	return len(seen)
}

func recoveredCount(steps []types.ExecutionStep) int {
	count := 0
	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1].Result, steps[i].Result
		if prev != nil && !prev.Success && cur != nil && cur.Success {
			count++
		}
	}
	return count
}

func errorRate(steps []types.ExecutionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	failed := 0
	for _, s := range steps {
		if s.Result != nil && !s.Result.Success {
			failed++
		}
	}
	return float64(failed) / float64(len(steps))
}

// dominantToolSequence returns the most common 2-tool consecutive
// sequence among successful steps, formatted as "toolA -> toolB", or ""
// if no two adjacent steps both succeeded.
func dominantToolSequence(steps []types.ExecutionStep) string {
	counts := make(map[string]int)
	var best string
	var bestCount int

	for i := 0; i+1 < len(steps); i++ {
		a, b := steps[i], steps[i+1]
		if a.Result == nil || !a.Result.Success || b.Result == nil || !b.Result.Success {
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
