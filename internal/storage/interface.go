package storage

import (
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// EpisodeFilter narrows ListEpisodes results.
type EpisodeFilter struct {
	Domain         string
	Tags           []string
	RequireAllTags bool
	CompletedOnly  bool
	Since          *time.Time
	Limit          int
	Offset         int
}

// EpisodeRepository manages episode persistence and retrieval.
type EpisodeRepository interface {
	StoreEpisode(episode *types.Episode) error
	GetEpisode(id string) (*types.Episode, error)
	DeleteEpisode(id string) error
	ListEpisodes(filter EpisodeFilter) ([]*types.Episode, error)
	QueryEpisodesSince(ts time.Time) ([]*types.Episode, error)
	QueryEpisodesByMetadata(key string, value interface{}) ([]*types.Episode, error)
	// CountEpisodes reports the total number of stored episodes and how
	// many of those have completed (non-nil Outcome/EndTime).
	CountEpisodes() (total int, completed int, err error)
}

// PatternFilter narrows ListPatterns results.
type PatternFilter struct {
	Domain string
	Limit  int
}

// PatternRepository manages pattern persistence, including atomic batch
// operations required by the batch-atomic invariant (spec §4.2/§8 inv. 4).
type PatternRepository interface {
	StorePattern(pattern *types.Pattern) error
	GetPattern(id string) (*types.Pattern, error)
	DeletePattern(id string) error
	StorePatternsBatch(patterns []*types.Pattern) error
	GetPatternsBatch(ids []string) ([]*types.Pattern, error)
	UpdatePatternsBatch(patterns []*types.Pattern) error
	DeletePatternsBatch(ids []string) error
	// ListPatterns returns patterns matching filter.Domain (all domains
	// when empty), newest first, capped at filter.Limit when positive.
	ListPatterns(filter PatternFilter) ([]*types.Pattern, error)
	// CountPatterns reports the total number of stored patterns.
	CountPatterns() (int, error)
}

// HeuristicRepository manages heuristic persistence.
type HeuristicRepository interface {
	StoreHeuristic(h *types.Heuristic) error
	GetHeuristic(id string) (*types.Heuristic, error)
	StoreHeuristicsBatch(hs []*types.Heuristic) error
	GetHeuristicsBatch(ids []string) ([]*types.Heuristic, error)
}

// HealthChecker reports basic backend liveness.
type HealthChecker interface {
	HealthCheck() bool
}

// Storage combines all repository interfaces into the single capability
// set consumed by the rest of the engine. No inheritance hierarchy is
// implied between the Primary and Cache implementations — both satisfy
// this one capability set, per spec §9 "Polymorphism".
type Storage interface {
	EpisodeRepository
	PatternRepository
	HeuristicRepository
	HealthChecker
}

// Verify MemoryStorage and SQLiteStorage implement Storage.
var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*SQLiteStorage)(nil)
)
