// Package effectiveness tracks how useful each pattern turns out to be
// once it starts being retrieved and applied, so retrieval ranking can
// prefer patterns with a track record over untested ones.
package effectiveness

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// MinEffectiveness is the score floor below which decay_old_patterns
// removes a pattern.
const MinEffectiveness = 0.3

// applicationWeightSaturation is the application count beyond which the
// application-count damping factor stops growing; below it, small
// sample sizes are treated as low-confidence evidence rather than
// gated by a hard minimum-count cutoff.
const applicationWeightSaturation = 3.0

// recencyFloor bounds how far staleness alone can drag a score down: a
// pattern that keeps succeeding is never erased purely by age.
const recencyFloor = 0.2

// recencyHorizonDays is the staleness window recency_decay reaches
// recencyFloor at.
const recencyHorizonDays = 60.0

// Tracker maintains per-pattern usage state in memory, keyed by pattern
// id. It does not persist state itself; callers read types.Effectiveness
// off the pattern record returned by storage and write it back after
// mutating.
type Tracker struct {
	mu    sync.Mutex
	state map[string]*types.Effectiveness
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{state: make(map[string]*types.Effectiveness)}
}

// Seed registers a pattern's existing effectiveness record (e.g. loaded
// from storage, or a fresh zero-value record for a newly extracted
// pattern per spec §4.6 step 6).
func (t *Tracker) Seed(patternID string, eff types.Effectiveness) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := eff
	t.state[patternID] = &cp
}

func (t *Tracker) get(patternID string) *types.Effectiveness {
	e, ok := t.state[patternID]
	if !ok {
		e = &types.Effectiveness{CreatedAt: time.Now()}
		t.state[patternID] = e
	}
	return e
}

// RecordRetrieval increments retrieval_count and stamps last_retrieved.
func (t *Tracker) RecordRetrieval(patternID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(patternID)
	e.RetrievalCount++
	now := time.Now()
	e.LastRetrieved = &now
}

// RecordApplication increments application_count and success/failure,
// then recomputes effectiveness_score.
func (t *Tracker) RecordApplication(patternID string, succeeded bool) types.Effectiveness {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(patternID)
	e.ApplicationCount++
	if succeeded {
		e.SuccessCount++
	} else {
		e.FailureCount++
	}
	now := time.Now()
	e.LastApplied = &now
	e.Score = score(*e)
	return *e
}

// Get returns a copy of patternID's current effectiveness state.
func (t *Tracker) Get(patternID string) (types.Effectiveness, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.state[patternID]
	if !ok {
		return types.Effectiveness{}, false
	}
	return *e, true
}

// Ranked is one entry in a get_ranked_patterns result.
type Ranked struct {
	PatternID string
	Score     float64
}

// GetRankedPatterns returns every tracked pattern's id and current
// score, sorted descending.
func (t *Tracker) GetRankedPatterns() []Ranked {
	t.mu.Lock()
	defer t.mu.Unlock()

	ranked := make([]Ranked, 0, len(t.state))
	for id, e := range t.state {
		ranked = append(ranked, Ranked{PatternID: id, Score: e.Score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// DecayOldPatterns recomputes every tracked pattern's score against the
// current time (so purely time-based staleness is reflected even
// without a fresh application) and returns the ids whose score fell
// below MinEffectiveness, removing them from the tracker. Idempotent:
// calling it again immediately after returns no further removals, since
// a removed pattern is no longer tracked and a retained one's score
// only drops further with more elapsed time, not with repeated calls at
// the same instant.
func (t *Tracker) DecayOldPatterns() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for id, e := range t.state {
		e.Score = score(*e)
		if e.Score < MinEffectiveness {
			removed = append(removed, id)
			delete(t.state, id)
		}
	}
	return removed
}

// OverallStats summarizes the tracker's current population.
type OverallStats struct {
	TrackedPatterns int
	AvgScore        float64
	TopScore        float64
}

// OverallStats computes a snapshot summary across all tracked patterns.
func (t *Tracker) OverallStats() OverallStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.state) == 0 {
		return OverallStats{}
	}

	var sum, top float64
	for _, e := range t.state {
		sum += e.Score
		if e.Score > top {
			top = e.Score
		}
	}
	return OverallStats{
		TrackedPatterns: len(t.state),
		AvgScore:        sum / float64(len(t.state)),
		TopScore:        top,
	}
}

// score computes effectiveness_score = success_rate *
// application_weight(application_count) * recency_decay(days_since_last_use),
// bounded to [0,1]. See DESIGN.md's Open Question resolution for why
// this exact shape was chosen over the (unretrieved) original formula.
func score(e types.Effectiveness) float64 {
	if e.ApplicationCount == 0 {
		return 0
	}

	successRate := float64(e.SuccessCount) / float64(e.ApplicationCount)
	weight := math.Min(1, float64(e.ApplicationCount)/applicationWeightSaturation)
	decay := recencyDecay(e.LastApplied)

	return clamp01(successRate * weight * decay)
}

func recencyDecay(lastApplied *time.Time) float64 {
	if lastApplied == nil {
		return recencyFloor
	}
	daysSince := time.Since(*lastApplied).Hours() / 24
	decay := 1 - daysSince/recencyHorizonDays
	return math.Max(recencyFloor, decay)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
