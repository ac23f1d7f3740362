package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/storage/pool"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

// ResilientStorage wraps a Primary Storage backend with circuit-breaker
// protection and an in-memory Cache fallback. Reads fall back to cache
// when the circuit is open or the call fails; writes made during an
// outage are applied to the cache and flagged dirty so the next
// successful Primary write of the same id reconciles it — "primary
// wins on next successful write", per the cache/Primary divergence
// policy.
type ResilientStorage struct {
	primary        storage.Storage
	cache          *storage.MemoryStorage
	cb             *CircuitBreaker
	pool           *pool.AdaptivePool
	acquireTimeout time.Duration

	mu    sync.Mutex
	dirty map[string]bool // "episode:<id>" / "pattern:<id>" / "heuristic:<id>" written only to cache
}

// NewResilientStorage wraps primary with a circuit breaker and cache
// fallback. p may be nil to skip connection-slot gating.
func NewResilientStorage(primary storage.Storage, cbCfg Config, p *pool.AdaptivePool) *ResilientStorage {
	return &ResilientStorage{
		primary:        primary,
		cache:          storage.NewMemoryStorage(),
		cb:             New(cbCfg),
		pool:           p,
		acquireTimeout: 2 * time.Second,
		dirty:          make(map[string]bool),
	}
}

var _ storage.Storage = (*ResilientStorage)(nil)

func dirtyKey(kind, id string) string { return kind + ":" + id }

// withPrimary runs fn through the circuit breaker, gated by the
// connection pool if one is configured.
func (r *ResilientStorage) withPrimary(fn func(context.Context) error) error {
	ctx := context.Background()
	if r.pool != nil {
		permit, err := r.pool.Acquire(ctx, r.acquireTimeout)
		if err != nil {
			return types.WrapError(types.ErrAcquireTimeout, "acquire storage pool slot", err)
		}
		defer permit.Release()
	}
	return r.cb.Call(ctx, fn)
}

func (r *ResilientStorage) markDirty(kind, id string) {
	r.mu.Lock()
	r.dirty[dirtyKey(kind, id)] = true
	r.mu.Unlock()
}

func (r *ResilientStorage) clearDirty(kind, id string) {
	r.mu.Lock()
	delete(r.dirty, dirtyKey(kind, id))
	r.mu.Unlock()
}

func (r *ResilientStorage) isDirty(kind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty[dirtyKey(kind, id)]
}

// StoreEpisode writes to the cache unconditionally (so reads never
// regress during an outage), then attempts the Primary write; on
// failure the episode is flagged dirty for later reconciliation rather
// than returning an error, since the cache write already succeeded.
func (r *ResilientStorage) StoreEpisode(e *types.Episode) error {
	if err := r.cache.StoreEpisode(e); err != nil {
		return err
	}
	err := r.withPrimary(func(context.Context) error { return r.primary.StoreEpisode(e) })
	if err != nil {
		r.markDirty("episode", e.EpisodeID)
		return nil
	}
	r.clearDirty("episode", e.EpisodeID)
	return nil
}

// GetEpisode prefers Primary when the circuit is closed and the id
// isn't known-dirty in cache; falls back to cache otherwise.
func (r *ResilientStorage) GetEpisode(id string) (*types.Episode, error) {
	if r.cb.State() == Open || r.isDirty("episode", id) {
		return r.cache.GetEpisode(id)
	}
	var result *types.Episode
	err := r.withPrimary(func(context.Context) error {
		e, err := r.primary.GetEpisode(id)
		if err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return r.cache.GetEpisode(id)
	}
	return result, nil
}

func (r *ResilientStorage) DeleteEpisode(id string) error {
	_ = r.cache.DeleteEpisode(id)
	err := r.withPrimary(func(context.Context) error { return r.primary.DeleteEpisode(id) })
	if err != nil {
		r.markDirty("episode", id)
		return nil
	}
	r.clearDirty("episode", id)
	return nil
}

func (r *ResilientStorage) ListEpisodes(filter storage.EpisodeFilter) ([]*types.Episode, error) {
	if r.cb.State() == Open {
		return r.cache.ListEpisodes(filter)
	}
	var result []*types.Episode
	err := r.withPrimary(func(context.Context) error {
		list, err := r.primary.ListEpisodes(filter)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return r.cache.ListEpisodes(filter)
	}
	return result, nil
}

func (r *ResilientStorage) QueryEpisodesSince(ts time.Time) ([]*types.Episode, error) {
	return r.ListEpisodes(storage.EpisodeFilter{Since: &ts})
}

func (r *ResilientStorage) QueryEpisodesByMetadata(key string, value interface{}) ([]*types.Episode, error) {
	if r.cb.State() == Open {
		return r.cache.QueryEpisodesByMetadata(key, value)
	}
	var result []*types.Episode
	err := r.withPrimary(func(context.Context) error {
		list, err := r.primary.QueryEpisodesByMetadata(key, value)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return r.cache.QueryEpisodesByMetadata(key, value)
	}
	return result, nil
}

// CountEpisodes reports Primary's counts, falling back to the cache's
// (necessarily partial) counts when the circuit is open or the call fails.
func (r *ResilientStorage) CountEpisodes() (total int, completed int, err error) {
	if r.cb.State() == Open {
		return r.cache.CountEpisodes()
	}
	var gotTotal, gotCompleted int
	callErr := r.withPrimary(func(context.Context) error {
		t, c, err := r.primary.CountEpisodes()
		if err != nil {
			return err
		}
		gotTotal, gotCompleted = t, c
		return nil
	})
	if callErr != nil {
		return r.cache.CountEpisodes()
	}
	return gotTotal, gotCompleted, nil
}

func (r *ResilientStorage) StorePattern(p *types.Pattern) error {
	if err := r.cache.StorePattern(p); err != nil {
		return err
	}
	err := r.withPrimary(func(context.Context) error { return r.primary.StorePattern(p) })
	if err != nil {
		r.markDirty("pattern", p.ID)
		return nil
	}
	r.clearDirty("pattern", p.ID)
	return nil
}

func (r *ResilientStorage) GetPattern(id string) (*types.Pattern, error) {
	if r.cb.State() == Open || r.isDirty("pattern", id) {
		return r.cache.GetPattern(id)
	}
	var result *types.Pattern
	err := r.withPrimary(func(context.Context) error {
		p, err := r.primary.GetPattern(id)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return r.cache.GetPattern(id)
	}
	return result, nil
}

func (r *ResilientStorage) DeletePattern(id string) error {
	_ = r.cache.DeletePattern(id)
	err := r.withPrimary(func(context.Context) error { return r.primary.DeletePattern(id) })
	if err != nil {
		r.markDirty("pattern", id)
		return nil
	}
	r.clearDirty("pattern", id)
	return nil
}

// StorePatternsBatch preserves the atomic-batch contract: the cache
// write is a pure in-memory operation (infallible), and the Primary
// write is delegated to the Primary's own transactional batch method.
func (r *ResilientStorage) StorePatternsBatch(patterns []*types.Pattern) error {
	if err := r.cache.StorePatternsBatch(patterns); err != nil {
		return err
	}
	err := r.withPrimary(func(context.Context) error { return r.primary.StorePatternsBatch(patterns) })
	if err != nil {
		for _, p := range patterns {
			r.markDirty("pattern", p.ID)
		}
		return nil
	}
	for _, p := range patterns {
		r.clearDirty("pattern", p.ID)
	}
	return nil
}

func (r *ResilientStorage) GetPatternsBatch(ids []string) ([]*types.Pattern, error) {
	if r.cb.State() == Open {
		return r.cache.GetPatternsBatch(ids)
	}
	var result []*types.Pattern
	err := r.withPrimary(func(context.Context) error {
		list, err := r.primary.GetPatternsBatch(ids)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return r.cache.GetPatternsBatch(ids)
	}
	return result, nil
}

func (r *ResilientStorage) UpdatePatternsBatch(patterns []*types.Pattern) error {
	return r.StorePatternsBatch(patterns)
}

func (r *ResilientStorage) ListPatterns(filter storage.PatternFilter) ([]*types.Pattern, error) {
	if r.cb.State() == Open {
		return r.cache.ListPatterns(filter)
	}
	var result []*types.Pattern
	err := r.withPrimary(func(context.Context) error {
		list, err := r.primary.ListPatterns(filter)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return r.cache.ListPatterns(filter)
	}
	return result, nil
}

// CountPatterns reports Primary's count, falling back to the cache's
// (necessarily partial) count when the circuit is open or the call fails.
func (r *ResilientStorage) CountPatterns() (int, error) {
	if r.cb.State() == Open {
		return r.cache.CountPatterns()
	}
	var count int
	err := r.withPrimary(func(context.Context) error {
		c, err := r.primary.CountPatterns()
		if err != nil {
			return err
		}
		count = c
		return nil
	})
	if err != nil {
		return r.cache.CountPatterns()
	}
	return count, nil
}

func (r *ResilientStorage) DeletePatternsBatch(ids []string) error {
	_ = r.cache.DeletePatternsBatch(ids)
	err := r.withPrimary(func(context.Context) error { return r.primary.DeletePatternsBatch(ids) })
	if err != nil {
		for _, id := range ids {
			r.markDirty("pattern", id)
		}
		return nil
	}
	for _, id := range ids {
		r.clearDirty("pattern", id)
	}
	return nil
}

func (r *ResilientStorage) StoreHeuristic(h *types.Heuristic) error {
	if err := r.cache.StoreHeuristic(h); err != nil {
		return err
	}
	err := r.withPrimary(func(context.Context) error { return r.primary.StoreHeuristic(h) })
	if err != nil {
		r.markDirty("heuristic", h.HeuristicID)
		return nil
	}
	r.clearDirty("heuristic", h.HeuristicID)
	return nil
}

func (r *ResilientStorage) GetHeuristic(id string) (*types.Heuristic, error) {
	if r.cb.State() == Open || r.isDirty("heuristic", id) {
		return r.cache.GetHeuristic(id)
	}
	var result *types.Heuristic
	err := r.withPrimary(func(context.Context) error {
		h, err := r.primary.GetHeuristic(id)
		if err != nil {
			return err
		}
		result = h
		return nil
	})
	if err != nil {
		return r.cache.GetHeuristic(id)
	}
	return result, nil
}

func (r *ResilientStorage) StoreHeuristicsBatch(hs []*types.Heuristic) error {
	if err := r.cache.StoreHeuristicsBatch(hs); err != nil {
		return err
	}
	err := r.withPrimary(func(context.Context) error { return r.primary.StoreHeuristicsBatch(hs) })
	if err != nil {
		for _, h := range hs {
			r.markDirty("heuristic", h.HeuristicID)
		}
		return nil
	}
	for _, h := range hs {
		r.clearDirty("heuristic", h.HeuristicID)
	}
	return nil
}

func (r *ResilientStorage) GetHeuristicsBatch(ids []string) ([]*types.Heuristic, error) {
	if r.cb.State() == Open {
		return r.cache.GetHeuristicsBatch(ids)
	}
	var result []*types.Heuristic
	err := r.withPrimary(func(context.Context) error {
		list, err := r.primary.GetHeuristicsBatch(ids)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return r.cache.GetHeuristicsBatch(ids)
	}
	return result, nil
}

// HealthCheck reports healthy only when the circuit is closed AND the
// Primary backend itself reports healthy.
func (r *ResilientStorage) HealthCheck() bool {
	if r.cb.State() != Closed {
		return false
	}
	healthy := false
	err := r.withPrimary(func(context.Context) error {
		if !r.primary.HealthCheck() {
			return types.NewError(types.ErrStorageUnavail, "primary health check failed")
		}
		healthy = true
		return nil
	})
	return err == nil && healthy
}

// CircuitState exposes the breaker state for monitoring/status endpoints.
func (r *ResilientStorage) CircuitState() State { return r.cb.State() }

// CircuitStats exposes breaker counters for monitoring/status endpoints.
func (r *ResilientStorage) CircuitStats() Stats { return r.cb.Stats() }

// ResetCircuit forces the breaker closed; for operator intervention.
func (r *ResilientStorage) ResetCircuit() { r.cb.Reset() }

// DirtyCount reports how many ids are pending reconciliation with Primary.
func (r *ResilientStorage) DirtyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dirty)
}
