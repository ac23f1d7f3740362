package reward_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/reward"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func TestIsReliableRequiresFiveEpisodes(t *testing.T) {
	cache := reward.NewDomainStatisticsCache()
	for i := 0; i < 4; i++ {
		cache.UpdateIncremental("backend", 60, 10, 1.0, true)
	}
	stats, ok := cache.Get("backend")
	require.True(t, ok)
	assert.False(t, stats.IsReliable())

	cache.UpdateIncremental("backend", 60, 10, 1.0, true)
	stats, _ = cache.Get("backend")
	assert.True(t, stats.IsReliable())
}

func TestUpdateIncrementalTracksMeanAndSuccessCount(t *testing.T) {
	cache := reward.NewDomainStatisticsCache()
	cache.UpdateIncremental("backend", 10, 2, 1.0, true)
	cache.UpdateIncremental("backend", 20, 4, 0.5, false)

	stats, ok := cache.Get("backend")
	require.True(t, ok)
	assert.Equal(t, 2, stats.EpisodeCount)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.InDelta(t, 15.0, stats.AvgDurationSecs, 1e-9)
	assert.InDelta(t, 0.75, stats.AvgReward, 1e-9)
}

func TestRecomputeProducesExactPercentiles(t *testing.T) {
	cache := reward.NewDomainStatisticsCache()

	var episodes []*types.Episode
	for i := 1; i <= 10; i++ {
		start := time.Now()
		end := start.Add(time.Duration(i*10) * time.Second)
		episodes = append(episodes, &types.Episode{
			EpisodeID: "ep",
			Context:   types.TaskContext{Domain: "backend"},
			StartTime: start,
			EndTime:   &end,
			Steps:     make([]types.ExecutionStep, i),
			Outcome:   &types.Outcome{Status: types.OutcomeSuccess},
			Reward:    &types.RewardScore{Total: float64(i) / 10},
		})
	}

	stats := cache.Recompute("backend", episodes)
	assert.Equal(t, 10, stats.EpisodeCount)
	assert.Equal(t, 10, stats.SuccessCount)
	assert.Greater(t, stats.P90DurationSecs, stats.P50DurationSecs)
}

func TestIsStaleAfterSevenDays(t *testing.T) {
	stats := types.NewDomainStatistics("backend")
	assert.False(t, stats.IsStale())

	stats.LastUpdated = time.Now().Add(-8 * 24 * time.Hour)
	assert.True(t, stats.IsStale())
}
