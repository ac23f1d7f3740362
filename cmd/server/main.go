// Package main provides the entry point for the episodic memory engine.
//
// It wires storage, the learning pipeline, and the retrieval engine
// behind a Memory Facade and runs a minimal demo episode through the
// full cycle so operators can confirm the engine is wired correctly
// before embedding the Facade in a real agent host. This process does
// not expose an RPC or MCP tool surface — embedding the Facade
// directly into a host process is the supported integration path; see
// SPEC_FULL.md §1 Non-goals.
//
// Environment variables:
//   - DEBUG: set to "true" to enable file:line debug logging
//   - STORAGE_TYPE, STORAGE_FALLBACK_TYPE, SQLITE_PATH, SQLITE_TIMEOUT: see internal/storage/config.go
//   - EMBEDDINGS_ENABLED, EMBEDDINGS_PROVIDER, EMBEDDINGS_MODEL: see internal/embeddings/embedder.go
//   - LEARNING_QUALITY_THRESHOLD, LEARNING_REJECT_LOW_QUALITY, LEARNING_ASYNC_EXTRACTION,
//     LEARNING_EXTRACTION_WORKERS, LEARNING_CONFIDENCE_THRESHOLD, LEARNING_ENABLE_CLUSTERING:
//     see internal/learning/pipeline.go
package main

import (
	"log"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

func main() {
	log.Println("starting episodic memory engine...")

	components, err := InitializeServer()
	if err != nil {
		log.Fatalf("failed to initialize engine: %v", err)
	}
	defer func() {
		if err := components.Cleanup(); err != nil {
			log.Printf("warning: failed to close storage: %v", err)
		}
	}()

	log.Println("engine wired: storage, learning pipeline, retrieval engine, memory facade")

	if err := runStartupSmokeEpisode(components); err != nil {
		log.Printf("warning: startup smoke episode failed: %v", err)
	}

	stats, err := components.Facade.GetStats()
	if err != nil {
		log.Fatalf("failed to read engine stats: %v", err)
	}
	log.Printf("ready — total_episodes=%d completed_episodes=%d total_patterns=%d open_episodes=%d tracked_patterns=%d",
		stats.TotalEpisodes, stats.CompletedEpisodes, stats.TotalPatterns, stats.OpenEpisodes, stats.Effectiveness.TrackedPatterns)
}

// runStartupSmokeEpisode drives one episode through StartEpisode,
// LogStep, and CompleteEpisode so a misconfigured storage or learning
// pipeline fails fast and loud at startup rather than silently on the
// first real episode.
func runStartupSmokeEpisode(c *ServerComponents) error {
	id, err := c.Facade.StartEpisode(types.TaskOther, "startup smoke check", types.TaskContext{
		Domain: "system", Complexity: types.ComplexitySimple, Tags: []string{"startup-check"},
	})
	if err != nil {
		return err
	}

	if err := c.Facade.LogStep(id, types.ExecutionStep{
		Tool:   "engine",
		Action: "verify wiring",
		Result: &types.StepResult{Success: true, Message: "components reachable"},
	}); err != nil {
		return err
	}

	_, _, err = c.Facade.CompleteEpisode(id, types.Outcome{
		Status:  types.OutcomeSuccess,
		Verdict: "engine components are wired and reachable",
	})
	return err
}
