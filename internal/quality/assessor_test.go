package quality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/d-o-hub/episodic-memory/internal/quality"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func richEpisode() *types.Episode {
	return &types.Episode{
		EpisodeID: "ep-1",
		Steps: []types.ExecutionStep{
			{Tool: "editor", Parameters: map[string]interface{}{"path": "a.go"}, Result: &types.StepResult{Success: true}},
			{Tool: "shell", Parameters: map[string]interface{}{"cmd": "go test"}, Result: &types.StepResult{Success: true}},
			{Tool: "editor", Parameters: map[string]interface{}{"path": "b.go"}, Result: &types.StepResult{Success: true}},
			{Tool: "linter", Result: &types.StepResult{Success: true}},
		},
	}
}

func richReflection() *types.Reflection {
	return &types.Reflection{
		Successes:    []string{"passed tests", "clean diff"},
		Improvements: []string{"add more coverage"},
		Insights:     []string{"editor+linter combo works well"},
	}
}

func TestScoreIsHigherForRicherEpisodes(t *testing.T) {
	a := quality.Default()

	thin := &types.Episode{Steps: []types.ExecutionStep{{Tool: "editor", Result: &types.StepResult{Success: true}}}}
	thinScore, _ := a.Score(thin, nil, 0)

	richScore, _ := a.Score(richEpisode(), richReflection(), 3)

	assert.Greater(t, richScore, thinScore)
}

func TestAdmitUsesThreshold(t *testing.T) {
	strict := quality.New(quality.DefaultWeights(), 0.99)
	admitted, score, _ := strict.Admit(richEpisode(), richReflection(), 3)
	assert.False(t, admitted)
	assert.Greater(t, score, 0.0)

	lenient := quality.New(quality.DefaultWeights(), 0.01)
	admitted, _, _ = lenient.Admit(richEpisode(), richReflection(), 3)
	assert.True(t, admitted)
}

func TestErrorRateScoreCreditsRecovery(t *testing.T) {
	a := quality.Default()

	unrecovered := &types.Episode{Steps: []types.ExecutionStep{
		{Tool: "editor", Result: &types.StepResult{Success: false}},
		{Tool: "editor", Result: &types.StepResult{Success: false}},
	}}
	_, fUnrecovered := a.Score(unrecovered, nil, 0)

	recovered := &types.Episode{Steps: []types.ExecutionStep{
		{Tool: "editor", Result: &types.StepResult{Success: false}},
		{Tool: "editor", Result: &types.StepResult{Success: true}},
	}}
	_, fRecovered := a.Score(recovered, nil, 0)

	assert.Greater(t, fRecovered.ErrorRate, fUnrecovered.ErrorRate)
}

func TestScoreWithNoStepsDoesNotPanic(t *testing.T) {
	a := quality.Default()
	score, f := a.Score(&types.Episode{}, nil, 0)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Equal(t, 1.0, f.ErrorRate)
}
