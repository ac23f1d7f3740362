package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpisodeBuilder(t *testing.T) {
	e := NewEpisode("ep-1").
		TaskType(TaskDebugging).
		Description("fix the flaky test").
		Context(TaskContext{Domain: "ci", Complexity: ComplexityModerate}).
		Tags("flaky", "ci").
		Metadata("attempt", 1).
		Build()

	assert.Equal(t, "ep-1", e.EpisodeID)
	assert.Equal(t, TaskDebugging, e.TaskType)
	assert.Equal(t, "ci", e.Context.Domain)
	assert.Equal(t, []string{"flaky", "ci"}, e.Tags)
	assert.Equal(t, 1, e.Metadata["attempt"])
}

func TestPatternBuilder(t *testing.T) {
	p := NewPattern("pat-1", PatternToolSequence).
		SuccessRate(0.9).
		Source("ep-1").
		Tools("build", "test").
		Build()

	assert.Equal(t, PatternToolSequence, p.Kind)
	assert.InDelta(t, 0.9, p.SuccessRate, 1e-9)
	assert.Equal(t, []string{"build", "test"}, p.Tools)
	assert.Equal(t, "ep-1", p.SourceEpisode)
}

func TestTagNormalizationIdempotent(t *testing.T) {
	tags, err := NormalizeTags([]string{"  REST ", "rest", "Concurrency"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"concurrency", "rest"}, tags)

	again, err := NormalizeTags(tags)
	assert.NoError(t, err)
	assert.Equal(t, tags, again)
}

func TestTagValidationRejectsInvalid(t *testing.T) {
	_, err := NormalizeTags([]string{"!bad"})
	assert.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrInvalidInput, kind)
}

func TestTagsOverlapAndContainAll(t *testing.T) {
	a := []string{"tag1", "tag2"}
	b := []string{"tag2", "tag3"}
	assert.True(t, TagsOverlap(a, b))
	assert.False(t, TagsContainAll(a, b))

	c := []string{"tag1", "tag2", "tag3"}
	assert.True(t, TagsContainAll(c, a))
}
