// Package quality implements the admission gate a completed episode must
// clear before it is durably stored and fed into pattern extraction: a
// weighted sum of five [0,1]-normalized features, generalized from the
// teacher's alert-threshold metric idiom into a scoring gate.
package quality

import (
	"math"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// Weights assigns a relative importance to each of the five admission
// features. Values need not sum to 1; Score normalizes by their sum.
type Weights struct {
	TaskComplexity  float64
	StepDiversity   float64
	ErrorRate       float64
	ReflectionDepth float64
	PatternNovelty  float64
}

// DefaultWeights applies roughly equal weight to each feature, per
// spec's "defaults equal-ish" guidance — reflection depth is weighted
// slightly lower since it is derived from the other four and otherwise
// double-counts their signal.
func DefaultWeights() Weights {
	return Weights{
		TaskComplexity:  0.22,
		StepDiversity:   0.22,
		ErrorRate:       0.22,
		ReflectionDepth: 0.12,
		PatternNovelty:  0.22,
	}
}

// DefaultThreshold is the minimum weighted score an episode must reach
// to be admitted.
const DefaultThreshold = 0.7

// Assessor scores a completed episode's admission quality.
type Assessor struct {
	weights   Weights
	threshold float64
}

// New returns an Assessor with the given weights and admission
// threshold.
func New(weights Weights, threshold float64) *Assessor {
	return &Assessor{weights: weights, threshold: threshold}
}

// Default returns an Assessor using DefaultWeights and DefaultThreshold.
func Default() *Assessor {
	return New(DefaultWeights(), DefaultThreshold)
}

// Features holds the five [0,1]-normalized admission signals, exposed
// for callers that want to inspect the breakdown rather than just the
// final verdict.
type Features struct {
	TaskComplexity  float64
	StepDiversity   float64
	ErrorRate       float64
	ReflectionDepth float64
	PatternNovelty  float64
}

// Score returns the weighted admission score for e. patternCount is the
// number of candidate patterns extracted so far (0 before extraction
// runs; Admit is typically called once more after extraction completes
// if pattern_novelty matters to the final verdict).
func (a *Assessor) Score(e *types.Episode, reflection *types.Reflection, patternCount int) (float64, Features) {
	f := Features{
		TaskComplexity:  taskComplexityScore(e),
		StepDiversity:   stepDiversityScore(e.Steps),
		ErrorRate:       errorRateScore(e.Steps),
		ReflectionDepth: reflectionDepthScore(reflection),
		PatternNovelty:  patternNoveltyScore(patternCount),
	}

	w := a.weights
	sum := w.TaskComplexity + w.StepDiversity + w.ErrorRate + w.ReflectionDepth + w.PatternNovelty
	if sum == 0 {
		sum = 1
	}

	score := (w.TaskComplexity*f.TaskComplexity +
		w.StepDiversity*f.StepDiversity +
		w.ErrorRate*f.ErrorRate +
		w.ReflectionDepth*f.ReflectionDepth +
		w.PatternNovelty*f.PatternNovelty) / sum

	return score, f
}

// Admit reports whether e's weighted score clears the configured
// threshold.
func (a *Assessor) Admit(e *types.Episode, reflection *types.Reflection, patternCount int) (bool, float64, Features) {
	score, f := a.Score(e, reflection, patternCount)
	return score >= a.threshold, score, f
}

// taskComplexityScore blends step count, tool diversity, and parameter
// richness into a single [0,1] measure of how substantial the attempt
// was — more steps/tools/parameters indicate a richer, more learnable
// episode, saturating rather than growing unbounded.
func taskComplexityScore(e *types.Episode) float64 {
	stepScore := saturate(float64(len(e.Steps)), 15)
	toolScore := saturate(float64(uniqueTools(e.Steps)), 6)
	paramScore := saturate(float64(totalParams(e.Steps)), 20)
	return (stepScore + toolScore + paramScore) / 3
}

func stepDiversityScore(steps []types.ExecutionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	return float64(uniqueTools(steps)) / float64(len(steps))
}

// errorRateScore inverts the failed-step ratio, but a moderate error
// rate followed by recovery is not penalized as harshly as an
// unrecovered one — errors that get fixed are themselves a useful
// signal for the Error Recovery pattern extractor.
func errorRateScore(steps []types.ExecutionStep) float64 {
	if len(steps) == 0 {
		return 1
	}
	failed, recovered := 0, 0
	for i, s := range steps {
		if s.Result != nil && !s.Result.Success {
			failed++
			if i+1 < len(steps) && steps[i+1].Result != nil && steps[i+1].Result.Success {
				recovered++
			}
		}
	}
	if failed == 0 {
		return 1
	}
	rawRate := float64(failed) / float64(len(steps))
	recoveryCredit := float64(recovered) / float64(failed)
	return clamp01(1 - rawRate*(1-0.5*recoveryCredit))
}

func reflectionDepthScore(r *types.Reflection) float64 {
	if r == nil {
		return 0
	}
	total := len(r.Successes) + len(r.Improvements) + len(r.Insights)
	return saturate(float64(total), 9)
}

func patternNoveltyScore(patternCount int) float64 {
	return saturate(float64(patternCount), 4)
}

// saturate maps v onto [0,1] by dividing by target and clamping, so a
// handful of observations already scores respectably and more beyond
// target stops mattering.
func saturate(v, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return clamp01(v / target)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func uniqueTools(steps []types.ExecutionStep) int {
	seen := make(map[string]struct{})
	for _, s := range steps {
		seen[s.Tool] = struct{}{}
	}
	return len(seen)
}

func totalParams(steps []types.ExecutionStep) int {
	total := 0
	for _, s := range steps {
		total += len(s.Parameters)
	}
	return total
}
