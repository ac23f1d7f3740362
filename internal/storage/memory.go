package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// MemoryStorage is the local embedded Cache backend: a guarded set of
// maps with deep-copy-on-read semantics, following the teacher's
// MemoryStorage idiom (RWMutex-guarded maps, copies returned from Get to
// prevent callers mutating internal state).
//
// It satisfies the full Storage contract but offers weaker query
// richness than the Primary backend: no transactions across entities,
// and ListEpisodes/QueryEpisodesByMetadata are linear scans.
type MemoryStorage struct {
	mu sync.RWMutex

	episodes   map[string]*types.Episode
	patterns   map[string]*types.Pattern
	heuristics map[string]*types.Heuristic

	episodesOrdered []*types.Episode // newest first, by StartTime
}

// NewMemoryStorage constructs an empty Cache backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		episodes:        make(map[string]*types.Episode),
		patterns:        make(map[string]*types.Pattern),
		heuristics:      make(map[string]*types.Heuristic),
		episodesOrdered: make([]*types.Episode, 0, 100),
	}
}

func (s *MemoryStorage) StoreEpisode(episode *types.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.episodes[episode.EpisodeID]
	stored := copyEpisode(episode)
	s.episodes[episode.EpisodeID] = stored

	if !exists {
		s.episodesOrdered = append(s.episodesOrdered, stored)
	} else {
		for i, e := range s.episodesOrdered {
			if e.EpisodeID == episode.EpisodeID {
				s.episodesOrdered[i] = stored
				break
			}
		}
	}
	sort.Slice(s.episodesOrdered, func(i, j int) bool {
		return s.episodesOrdered[i].StartTime.After(s.episodesOrdered[j].StartTime)
	})
	return nil
}

func (s *MemoryStorage) GetEpisode(id string) (*types.Episode, error) {
	s.mu.RLock()
	e, ok := s.episodes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "episode not found: "+id)
	}
	return copyEpisode(e), nil
}

func (s *MemoryStorage) DeleteEpisode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.episodes[id]; !ok {
		return types.NewError(types.ErrNotFound, "episode not found: "+id)
	}
	delete(s.episodes, id)
	for i, e := range s.episodesOrdered {
		if e.EpisodeID == id {
			s.episodesOrdered = append(s.episodesOrdered[:i], s.episodesOrdered[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStorage) ListEpisodes(filter EpisodeFilter) ([]*types.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.Episode, 0, len(s.episodesOrdered))
	skipped := 0
	for _, e := range s.episodesOrdered {
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
		if !matchesFilter(e, filter) {
			continue
		}
		if filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, copyEpisode(e))
	}
	return results, nil
}

func matchesFilter(e *types.Episode, filter EpisodeFilter) bool {
	if filter.Domain != "" && e.Context.Domain != filter.Domain {
		return false
	}
	if filter.CompletedOnly && !e.IsComplete() {
		return false
	}
	if filter.Since != nil && e.StartTime.Before(*filter.Since) {
		return false
	}
	if len(filter.Tags) > 0 {
		if filter.RequireAllTags {
			if !types.TagsContainAll(e.Tags, filter.Tags) {
				return false
			}
		} else if !types.TagsOverlap(e.Tags, filter.Tags) {
			return false
		}
	}
	return true
}

func (s *MemoryStorage) QueryEpisodesSince(ts time.Time) ([]*types.Episode, error) {
	return s.ListEpisodes(EpisodeFilter{Since: &ts})
}

// CountEpisodes reports the total and completed episode counts.
func (s *MemoryStorage) CountEpisodes() (total int, completed int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.episodes {
		total++
		if e.IsComplete() {
			completed++
		}
	}
	return total, completed, nil
}

func (s *MemoryStorage) QueryEpisodesByMetadata(key string, value interface{}) ([]*types.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*types.Episode
	for _, e := range s.episodesOrdered {
		if e.Metadata == nil {
			continue
		}
		if v, ok := e.Metadata[key]; ok && v == value {
			results = append(results, copyEpisode(e))
		}
	}
	return results, nil
}

func (s *MemoryStorage) StorePattern(p *types.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.ID] = copyPattern(p)
	return nil
}

func (s *MemoryStorage) GetPattern(id string) (*types.Pattern, error) {
	s.mu.RLock()
	p, ok := s.patterns[id]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "pattern not found: "+id)
	}
	return copyPattern(p), nil
}

func (s *MemoryStorage) DeletePattern(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return types.NewError(types.ErrNotFound, "pattern not found: "+id)
	}
	delete(s.patterns, id)
	return nil
}

// StorePatternsBatch is atomic: it commits all patterns at once, and a
// later pattern with the same id as an earlier one in the batch
// overwrites it. Since MemoryStorage has no partial-failure
// mode (map assignment cannot fail), atomicity is trivially satisfied;
// the lock is held for the whole batch so no reader observes a partial
// write.
func (s *MemoryStorage) StorePatternsBatch(patterns []*types.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patterns {
		s.patterns[p.ID] = copyPattern(p)
	}
	return nil
}

func (s *MemoryStorage) GetPatternsBatch(ids []string) ([]*types.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*types.Pattern, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.patterns[id]; ok {
			results = append(results, copyPattern(p))
		}
	}
	return results, nil
}

// ListPatterns returns patterns matching filter.Domain (all domains when
// empty), newest first by CreatedAt, capped at filter.Limit when positive.
func (s *MemoryStorage) ListPatterns(filter PatternFilter) ([]*types.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if filter.Domain != "" && p.Context.Domain != filter.Domain {
			continue
		}
		results = append(results, copyPattern(p))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// CountPatterns reports the total number of stored patterns.
func (s *MemoryStorage) CountPatterns() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns), nil
}

func (s *MemoryStorage) UpdatePatternsBatch(patterns []*types.Pattern) error {
	return s.StorePatternsBatch(patterns)
}

func (s *MemoryStorage) DeletePatternsBatch(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.patterns, id)
	}
	return nil
}

func (s *MemoryStorage) StoreHeuristic(h *types.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heuristics[h.HeuristicID] = copyHeuristic(h)
	return nil
}

func (s *MemoryStorage) GetHeuristic(id string) (*types.Heuristic, error) {
	s.mu.RLock()
	h, ok := s.heuristics[id]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "heuristic not found: "+id)
	}
	return copyHeuristic(h), nil
}

func (s *MemoryStorage) StoreHeuristicsBatch(hs []*types.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hs {
		s.heuristics[h.HeuristicID] = copyHeuristic(h)
	}
	return nil
}

func (s *MemoryStorage) GetHeuristicsBatch(ids []string) ([]*types.Heuristic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*types.Heuristic, 0, len(ids))
	for _, id := range ids {
		if h, ok := s.heuristics[id]; ok {
			results = append(results, copyHeuristic(h))
		}
	}
	return results, nil
}

// HealthCheck always reports healthy: the cache is process-local memory
// with no external dependency to fail.
func (s *MemoryStorage) HealthCheck() bool {
	return true
}

// Len reports the number of stored episodes, used by tests and stats.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.episodes)
}

func copyEpisode(e *types.Episode) *types.Episode {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Steps = append([]types.ExecutionStep(nil), e.Steps...)
	cp.Tags = append([]string(nil), e.Tags...)
	cp.Patterns = append([]string(nil), e.Patterns...)
	cp.Metadata = deepCopyMap(e.Metadata)
	if e.EndTime != nil {
		t := *e.EndTime
		cp.EndTime = &t
	}
	if e.ArchivedAt != nil {
		t := *e.ArchivedAt
		cp.ArchivedAt = &t
	}
	if e.Outcome != nil {
		o := *e.Outcome
		o.Artifacts = append([]string(nil), e.Outcome.Artifacts...)
		o.Completed = append([]string(nil), e.Outcome.Completed...)
		o.Failed = append([]string(nil), e.Outcome.Failed...)
		cp.Outcome = &o
	}
	if e.Reward != nil {
		r := *e.Reward
		cp.Reward = &r
	}
	if e.Reflection != nil {
		r := *e.Reflection
		r.Successes = append([]string(nil), e.Reflection.Successes...)
		r.Improvements = append([]string(nil), e.Reflection.Improvements...)
		r.Insights = append([]string(nil), e.Reflection.Insights...)
		cp.Reflection = &r
	}
	cp.Context.Tags = append([]string(nil), e.Context.Tags...)
	return &cp
}

func copyPattern(p *types.Pattern) *types.Pattern {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tools = append([]string(nil), p.Tools...)
	cp.RecoverySteps = append([]string(nil), p.RecoverySteps...)
	cp.Context.Tags = append([]string(nil), p.Context.Tags...)
	if p.OutcomeStats != nil {
		os := *p.OutcomeStats
		cp.OutcomeStats = &os
	}
	if p.Effectiveness.LastRetrieved != nil {
		t := *p.Effectiveness.LastRetrieved
		cp.Effectiveness.LastRetrieved = &t
	}
	if p.Effectiveness.LastApplied != nil {
		t := *p.Effectiveness.LastApplied
		cp.Effectiveness.LastApplied = &t
	}
	return &cp
}

func copyHeuristic(h *types.Heuristic) *types.Heuristic {
	if h == nil {
		return nil
	}
	cp := *h
	cp.Evidence.EpisodeIDs = append([]string(nil), h.Evidence.EpisodeIDs...)
	return &cp
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
