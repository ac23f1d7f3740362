package reflection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/reflection"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func TestGenerateNeverReturnsNilSlices(t *testing.T) {
	e := &types.Episode{Outcome: &types.Outcome{Status: types.OutcomeFailure, Reason: "timed out"}}
	r := reflection.Generate(e)

	require.NotNil(t, r.Successes)
	require.NotNil(t, r.Improvements)
	require.NotNil(t, r.Insights)
}

func TestGenerateSuccessCaseHasNonEmptySuccessesAndInsights(t *testing.T) {
	e := &types.Episode{
		Context: types.TaskContext{Domain: "backend", Complexity: types.ComplexityModerate},
		Outcome: &types.Outcome{Status: types.OutcomeSuccess, Verdict: "auth endpoint added", Artifacts: []string{"handler.go"}},
		Steps: []types.ExecutionStep{
			{Tool: "editor", Result: &types.StepResult{Success: true}},
			{Tool: "shell", Result: &types.StepResult{Success: true}},
			{Tool: "editor", Result: &types.StepResult{Success: true}},
		},
	}

	r := reflection.Generate(e)
	assert.NotEmpty(t, r.Successes)
	assert.NotEmpty(t, r.Insights)
	assert.Empty(t, r.Improvements)
}

func TestGenerateFlagsHighErrorRate(t *testing.T) {
	e := &types.Episode{
		Outcome: &types.Outcome{Status: types.OutcomePartialSuccess, Completed: []string{"a"}, Failed: []string{"b"}},
		Steps: []types.ExecutionStep{
			{Tool: "editor", Result: &types.StepResult{Success: false}},
			{Tool: "editor", Result: &types.StepResult{Success: false}},
			{Tool: "editor", Result: &types.StepResult{Success: true}},
		},
	}

	r := reflection.Generate(e)
	assert.NotEmpty(t, r.Improvements)
}

func TestGenerateDetectsErrorRecovery(t *testing.T) {
	e := &types.Episode{
		Outcome: &types.Outcome{Status: types.OutcomeSuccess},
		Steps: []types.ExecutionStep{
			{Tool: "shell", Result: &types.StepResult{Success: false}},
			{Tool: "shell", Result: &types.StepResult{Success: true}},
		},
	}

	r := reflection.Generate(e)
	found := false
	for _, s := range r.Successes {
		if s == "recovered from an error mid-task" {
			found = true
		}
	}
	assert.True(t, found)
}
