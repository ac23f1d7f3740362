// Package memory is the public facade over the episodic memory engine:
// starting and completing episodes, listing and retrieving them, and
// the tag operations in tags.go. Grounded on the teacher's
// EpisodicMemoryStore (a guarded map of open sessions, duck-typed
// storage dependency) and SessionTracker (per-episode lock, auto-
// materializing entries), generalized from reasoning trajectories to
// the Episode/Pattern/Heuristic data model.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/learning"
	"github.com/d-o-hub/episodic-memory/internal/retrieval"
	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

// openEpisode is an in-progress episode: the working-set entry between
// StartEpisode and CompleteEpisode. Its own mutex guards Steps so
// LogStep calls for different episodes never contend, matching the
// teacher's per-session-lock texture.
type openEpisode struct {
	mu      sync.Mutex
	episode *types.Episode
}

// Facade is the engine's single public entry point: everything a caller
// (a CLI, an RPC handler, a test) needs is a method on this type.
type Facade struct {
	storage  storage.Storage
	pipeline *learning.Pipeline
	retrieve *retrieval.Engine
	eff      *effectiveness.Tracker

	mu   sync.RWMutex
	open map[string]*openEpisode
}

// New wires a Facade over an already-constructed Storage, learning
// Pipeline, and retrieval Engine (see cmd/server for the composition
// root that builds these from Config).
func New(st storage.Storage, pipeline *learning.Pipeline, retrieveEngine *retrieval.Engine, eff *effectiveness.Tracker) *Facade {
	return &Facade{
		storage:  st,
		pipeline: pipeline,
		retrieve: retrieveEngine,
		eff:      eff,
		open:     make(map[string]*openEpisode),
	}
}

// StartEpisode begins tracking a new episode and returns its id.
func (f *Facade) StartEpisode(taskType types.TaskType, description string, ctx types.TaskContext) (string, error) {
	normalized, err := types.NormalizeTags(ctx.Tags)
	if err != nil {
		return "", err
	}
	ctx.Tags = normalized

	id := uuid.NewString()
	ep := &types.Episode{
		EpisodeID:       id,
		TaskType:        taskType,
		TaskDescription: description,
		Context:         ctx,
		Tags:            normalized,
		StartTime:       time.Now(),
		Steps:           []types.ExecutionStep{},
	}

	f.mu.Lock()
	f.open[id] = &openEpisode{episode: ep}
	f.mu.Unlock()

	if err := f.storage.StoreEpisode(ep); err != nil {
		return "", types.WrapError(types.ErrStorageUnavail, "start_episode: initial persist failed", err)
	}
	return id, nil
}

// LogStep appends one execution step to an open episode. It fails with
// NotFound if the episode is unknown and with InvalidState if it is
// already complete.
func (f *Facade) LogStep(episodeID string, step types.ExecutionStep) error {
	entry, err := f.lookupOpen(episodeID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	step.StepNumber = len(entry.episode.Steps) + 1
	entry.episode.Steps = append(entry.episode.Steps, step)

	return f.storage.StoreEpisode(entry.episode)
}

// CompleteEpisode drives the learning cycle (admission, reward,
// reflection, persistence, pattern extraction, effectiveness init) for
// episodeID. Idempotent-once: a second call on an already-complete
// episode fails with InvalidState.
func (f *Facade) CompleteEpisode(episodeID string, outcome types.Outcome) (*types.Episode, learning.Result, error) {
	entry, err := f.lookupOpen(episodeID)
	if err != nil {
		return nil, learning.Result{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.episode.IsComplete() {
		return nil, learning.Result{}, types.NewError(types.ErrInvalidState, "episode already complete: "+episodeID)
	}

	now := time.Now()
	entry.episode.EndTime = &now
	entry.episode.Outcome = &outcome

	result := f.pipeline.Complete(entry.episode)

	f.mu.Lock()
	delete(f.open, episodeID)
	f.mu.Unlock()

	return entry.episode, result, nil
}

// GetEpisode returns one episode by id, open or completed, preferring
// the in-memory working-set copy (which may be ahead of storage) when
// the episode is still open.
func (f *Facade) GetEpisode(episodeID string) (*types.Episode, error) {
	if entry, err := f.lookupOpen(episodeID); err == nil {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		cp := *entry.episode
		return &cp, nil
	}
	return f.storage.GetEpisode(episodeID)
}

// ListEpisodes lists episodes matching filter, delegating directly to
// storage (the working set's open episodes are already mirrored there
// by StartEpisode/LogStep).
func (f *Facade) ListEpisodes(filter storage.EpisodeFilter) ([]*types.Episode, error) {
	return f.storage.ListEpisodes(filter)
}

// GetEpisodesByIDs returns every episode in ids that exists, preferring
// the open working-set copy when one is present. Unknown ids are
// silently skipped rather than failing the whole batch.
func (f *Facade) GetEpisodesByIDs(ids []string) ([]*types.Episode, error) {
	out := make([]*types.Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := f.GetEpisode(id)
		if err != nil {
			continue
		}
		out = append(out, ep)
	}
	return out, nil
}

// RetrieveRelevantContext runs the retrieval pipeline for free-text
// query against ctx, returning up to limit episodes most relevant to
// it, diversity re-ranked.
func (f *Facade) RetrieveRelevantContext(queryText string, ctx types.TaskContext, limit int) (*retrieval.Response, error) {
	return f.retrieve.RetrieveEpisodes(context.Background(), retrieval.Query{
		Text:    queryText,
		Context: ctx,
		Limit:   limit,
	})
}

// RetrieveRelevantPatterns returns up to limit patterns stored under
// ctx.Domain, ranked by the Effectiveness Tracker's score for patterns
// with usage history and by the pattern's own intrinsic success rate
// otherwise, and notifies the tracker of each returned pattern's
// retrieval.
func (f *Facade) RetrieveRelevantPatterns(ctx types.TaskContext, limit int) ([]*types.Pattern, error) {
	if limit <= 0 {
		limit = 10
	}
	candidates, err := f.storage.ListPatterns(storage.PatternFilter{Domain: ctx.Domain})
	if err != nil {
		return nil, err
	}

	ranked := make(map[string]float64)
	if f.eff != nil {
		for _, r := range f.eff.GetRankedPatterns() {
			ranked[r.PatternID] = r.Score
		}
	}
	scoreOf := func(p *types.Pattern) float64 {
		if s, ok := ranked[p.ID]; ok {
			return s
		}
		return p.SuccessRate
	}

	sort.Slice(candidates, func(i, j int) bool { return scoreOf(candidates[i]) > scoreOf(candidates[j]) })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]string, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}
	f.retrieve.NotifyRetrieval(ids)
	return candidates, nil
}

// Stats reports the engine-wide population counts from spec §4.1's
// get_stats, plus an OpenEpisodes/Effectiveness extension the spec
// leaves room for ("...") but does not itself name.
type Stats struct {
	TotalEpisodes     int
	CompletedEpisodes int
	TotalPatterns     int

	OpenEpisodes  int
	Effectiveness effectiveness.OverallStats
}

// GetStats returns total_episodes, completed_episodes, and
// total_patterns (per spec §4.1), alongside how many episodes are
// currently open and the effectiveness tracker's overall population
// stats.
func (f *Facade) GetStats() (Stats, error) {
	total, completed, err := f.storage.CountEpisodes()
	if err != nil {
		return Stats{}, err
	}
	totalPatterns, err := f.storage.CountPatterns()
	if err != nil {
		return Stats{}, err
	}

	f.mu.RLock()
	open := len(f.open)
	f.mu.RUnlock()

	var eff effectiveness.OverallStats
	if f.eff != nil {
		eff = f.eff.OverallStats()
	}
	return Stats{
		TotalEpisodes:     total,
		CompletedEpisodes: completed,
		TotalPatterns:     totalPatterns,
		OpenEpisodes:      open,
		Effectiveness:     eff,
	}, nil
}

// lookupOpen returns episodeID's working-set entry, or an error
// distinguishing an unknown id (NotFound) from a known-but-already-
// completed one (InvalidState): CompleteEpisode removes entries from
// the working set, so their absence there is ambiguous without this
// storage fallback check.
func (f *Facade) lookupOpen(episodeID string) (*openEpisode, error) {
	f.mu.RLock()
	entry, ok := f.open[episodeID]
	f.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if _, err := f.storage.GetEpisode(episodeID); err == nil {
		return nil, types.NewError(types.ErrInvalidState, "episode already complete: "+episodeID)
	}
	return nil, types.NewError(types.ErrNotFound, "episode not found in working set: "+episodeID)
}
