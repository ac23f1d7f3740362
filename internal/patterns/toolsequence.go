// Package patterns extracts reusable Pattern candidates from a completed
// episode's step trail: tool sequences, decision points, error
// recoveries, and context-to-approach shapes. Each extractor runs
// independently over the same episode; Hybrid combines and filters
// their output, Cluster deduplicates by structural signature.
package patterns

import (
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
	"github.com/google/uuid"
)

// minSequenceLen is the shortest run of consecutive successful steps
// worth recording as a ToolSequence pattern; a single step carries no
// sequencing information.
const minSequenceLen = 2

// ExtractToolSequences groups maximal runs of consecutive successful
// steps within e into ToolSequence candidates, aggregating average
// latency across the run. Each run's success_rate is 1.0 since every
// step in it succeeded by construction. Downstream, Cluster collapses
// runs that share a tool signature into one pattern; how often a run
// recurs is not counted.
func ExtractToolSequences(e *types.Episode) []*types.Pattern {
	var patterns []*types.Pattern

	start := -1
	flush := func(end int) {
		if start < 0 || end-start < minSequenceLen {
			start = -1
			return
		}
		run := e.Steps[start:end]
		patterns = append(patterns, toolSequencePattern(e, run))
		start = -1
	}

	for i, s := range e.Steps {
		if s.Result != nil && s.Result.Success {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(e.Steps))

	return patterns
}

func toolSequencePattern(e *types.Episode, run []types.ExecutionStep) *types.Pattern {
	tools := make([]string, len(run))
	var totalLatency int64
	for i, s := range run {
		tools[i] = s.Tool
		totalLatency += s.LatencyMs
	}

	return &types.Pattern{
		ID:              uuid.NewString(),
		Kind:            types.PatternToolSequence,
		Tools:           tools,
		AvgLatencyMs:    float64(totalLatency) / float64(len(run)),
		OccurrenceCount: 1,
		SuccessRate:     1.0,
		Context:         e.Context,
		SourceEpisode:   e.EpisodeID,
		CreatedAt:       time.Now(),
	}
}
