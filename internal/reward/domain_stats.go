package reward

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// DomainStatisticsCache holds one types.DomainStatistics per domain and
// keeps it current two ways: an O(1) incremental Welford-style update on
// each episode completion, and a full batch recompute (exact
// percentiles) run periodically or on demand.
type DomainStatisticsCache struct {
	mu    sync.RWMutex
	stats map[string]*types.DomainStatistics

	// durations/stepCounts/rewards retain raw samples per domain:
	// UpdateIncremental appends to them and Recompute replaces them with
	// the samples of the episodes it was given. Recompute does not read
	// them.
	durations  map[string][]float64
	stepCounts map[string][]int
	rewards    map[string][]float64
}

// NewDomainStatisticsCache returns an empty cache.
func NewDomainStatisticsCache() *DomainStatisticsCache {
	return &DomainStatisticsCache{
		stats:      make(map[string]*types.DomainStatistics),
		durations:  make(map[string][]float64),
		stepCounts: make(map[string][]int),
		rewards:    make(map[string][]float64),
	}
}

// Get returns a copy of domain's statistics, or ok=false if unseen.
func (c *DomainStatisticsCache) Get(domain string) (*types.DomainStatistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[domain]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// UpdateIncremental folds one completed episode's observations into
// domain's running statistics without touching percentiles (those are
// batch-only). Uses Welford's algorithm for the reward mean/variance so
// a single pass never needs the full reward history.
func (c *DomainStatisticsCache) UpdateIncremental(domain string, durationSecs float64, stepCount int, rewardTotal float64, succeeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[domain]
	if !ok {
		s = types.NewDomainStatistics(domain)
		c.stats[domain] = s
	}

	n := s.EpisodeCount
	nextN := n + 1

	s.AvgDurationSecs = welfordMean(s.AvgDurationSecs, n, durationSecs)
	s.AvgStepCount = welfordMean(s.AvgStepCount, n, float64(stepCount))

	prevMean := s.AvgReward
	s.AvgReward = welfordMean(prevMean, n, rewardTotal)
	if nextN > 1 {
		// Running variance via Welford's M2 update, expressed directly in
		// stddev terms since only RewardStdDev is persisted (no M2 field).
		m2 := s.RewardStdDev * s.RewardStdDev * float64(n)
		m2 += (rewardTotal - prevMean) * (rewardTotal - s.AvgReward)
		s.RewardStdDev = math.Sqrt(m2 / float64(nextN))
	}

	s.EpisodeCount = nextN
	if succeeded {
		s.SuccessCount++
	}
	s.LastUpdated = time.Now()

	c.durations[domain] = append(c.durations[domain], durationSecs)
	c.stepCounts[domain] = append(c.stepCounts[domain], stepCount)
	c.rewards[domain] = append(c.rewards[domain], rewardTotal)
}

func welfordMean(prevMean float64, n int, sample float64) float64 {
	return prevMean + (sample-prevMean)/float64(n+1)
}

// Recompute rebuilds domain's statistics from scratch, including exact
// percentiles, from the completed episodes in episodes alone (incomplete
// ones are skipped), so a recompute against persisted history (not just
// this process's samples) is possible.
func (c *DomainStatisticsCache) Recompute(domain string, episodes []*types.Episode) *types.DomainStatistics {
	durations := make([]float64, 0, len(episodes))
	steps := make([]int, 0, len(episodes))
	rewards := make([]float64, 0, len(episodes))
	successCount := 0

	for _, e := range episodes {
		if !e.IsComplete() {
			continue
		}
		durations = append(durations, e.Duration().Seconds())
		steps = append(steps, len(e.Steps))
		if e.Reward != nil {
			rewards = append(rewards, e.Reward.Total)
		}
		if e.Outcome != nil && e.Outcome.Status == types.OutcomeSuccess {
			successCount++
		}
	}

	s := types.NewDomainStatistics(domain)
	s.EpisodeCount = len(durations)
	s.SuccessCount = successCount

	if len(durations) > 0 {
		s.AvgDurationSecs = mean(durations)
		s.P50DurationSecs = percentile(durations, 0.5)
		s.P90DurationSecs = percentile(durations, 0.9)
	}
	if len(steps) > 0 {
		stepsF := make([]float64, len(steps))
		for i, v := range steps {
			stepsF[i] = float64(v)
		}
		s.AvgStepCount = mean(stepsF)
		s.P50StepCount = int(math.Round(percentile(stepsF, 0.5)))
		s.P90StepCount = int(math.Round(percentile(stepsF, 0.9)))
	}
	if len(rewards) > 0 {
		s.AvgReward = mean(rewards)
		s.P50Reward = percentile(rewards, 0.5)
		s.RewardStdDev = stddev(rewards, s.AvgReward)
	}

	c.mu.Lock()
	c.stats[domain] = s
	c.durations[domain] = durations
	c.stepCounts[domain] = steps
	c.rewards[domain] = rewards
	c.mu.Unlock()

	cp := *s
	return &cp
}

// percentile uses the nearest-rank method: index = round((n-1)*p).
func percentile(sorted []float64, p float64) float64 {
	cp := append([]float64(nil), sorted...)
	sort.Float64s(cp)
	if len(cp) == 1 {
		return cp[0]
	}
	idx := int(math.Round(float64(len(cp)-1) * p))
	return cp[idx]
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64, mu float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range vs {
		d := v - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vs)))
}
