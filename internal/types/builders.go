package types

import "time"

// EpisodeBuilder provides a fluent API for episode construction, mainly
// useful in tests where only a handful of fields vary per case.
type EpisodeBuilder struct {
	episode *Episode
}

// NewEpisode creates a new EpisodeBuilder with sensible defaults: a fresh
// start time and empty metadata/steps.
func NewEpisode(id string) *EpisodeBuilder {
	return &EpisodeBuilder{
		episode: &Episode{
			EpisodeID: id,
			StartTime: time.Now(),
			Steps:     []ExecutionStep{},
			Metadata:  map[string]interface{}{},
		},
	}
}

func (b *EpisodeBuilder) TaskType(t TaskType) *EpisodeBuilder {
	b.episode.TaskType = t
	return b
}

func (b *EpisodeBuilder) Description(desc string) *EpisodeBuilder {
	b.episode.TaskDescription = desc
	return b
}

func (b *EpisodeBuilder) Context(ctx TaskContext) *EpisodeBuilder {
	b.episode.Context = ctx
	return b
}

func (b *EpisodeBuilder) Tags(tags ...string) *EpisodeBuilder {
	b.episode.Tags = append(b.episode.Tags, tags...)
	return b
}

func (b *EpisodeBuilder) Step(step ExecutionStep) *EpisodeBuilder {
	b.episode.Steps = append(b.episode.Steps, step)
	return b
}

func (b *EpisodeBuilder) Metadata(key string, value interface{}) *EpisodeBuilder {
	b.episode.Metadata[InternMetadataKey(key)] = value
	return b
}

// Build returns the constructed episode.
func (b *EpisodeBuilder) Build() *Episode {
	return b.episode
}

// PatternBuilder provides a fluent API for pattern construction.
type PatternBuilder struct {
	pattern *Pattern
}

// NewPattern creates a new PatternBuilder of the given kind.
func NewPattern(id string, kind PatternKind) *PatternBuilder {
	return &PatternBuilder{
		pattern: &Pattern{
			ID:        id,
			Kind:      kind,
			CreatedAt: time.Now(),
		},
	}
}

func (b *PatternBuilder) SuccessRate(rate float64) *PatternBuilder {
	b.pattern.SuccessRate = rate
	return b
}

func (b *PatternBuilder) Context(ctx TaskContext) *PatternBuilder {
	b.pattern.Context = ctx
	return b
}

func (b *PatternBuilder) Source(episodeID string) *PatternBuilder {
	b.pattern.SourceEpisode = episodeID
	return b
}

func (b *PatternBuilder) Tools(tools ...string) *PatternBuilder {
	b.pattern.Tools = append(b.pattern.Tools, tools...)
	return b
}

// Build returns the constructed pattern.
func (b *PatternBuilder) Build() *Pattern {
	return b.pattern
}
