package effectiveness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func TestRecordRetrievalIncrementsCountAndStamp(t *testing.T) {
	tr := effectiveness.New()
	tr.RecordRetrieval("p1")
	tr.RecordRetrieval("p1")

	got, ok := tr.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 2, got.RetrievalCount)
	assert.NotNil(t, got.LastRetrieved)
}

func TestRecordApplicationRecomputesScoreMonotonicInSuccessRate(t *testing.T) {
	tr := effectiveness.New()
	for i := 0; i < applicationsToSaturate; i++ {
		tr.RecordApplication("always-succeeds", true)
	}
	for i := 0; i < applicationsToSaturate; i++ {
		tr.RecordApplication("always-fails", false)
	}

	good, _ := tr.Get("always-succeeds")
	bad, _ := tr.Get("always-fails")
	assert.Greater(t, good.Score, bad.Score)
	assert.Equal(t, 0.0, bad.Score)
}

const applicationsToSaturate = 3

func TestScoreIsBoundedToUnitInterval(t *testing.T) {
	tr := effectiveness.New()
	for i := 0; i < 50; i++ {
		tr.RecordApplication("p1", true)
	}
	got, _ := tr.Get("p1")
	assert.LessOrEqual(t, got.Score, 1.0)
	assert.GreaterOrEqual(t, got.Score, 0.0)
}

func TestGetRankedPatternsSortsDescending(t *testing.T) {
	tr := effectiveness.New()
	for i := 0; i < 3; i++ {
		tr.RecordApplication("low", true)
	}
	tr.RecordApplication("low", false)
	for i := 0; i < 5; i++ {
		tr.RecordApplication("high", true)
	}

	ranked := tr.GetRankedPatterns()
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].PatternID)
}

func TestDecayOldPatternsRemovesStaleScoresAndIsIdempotent(t *testing.T) {
	tr := effectiveness.New()
	staleTime := time.Now().Add(-90 * 24 * time.Hour)
	tr.Seed("stale", types.Effectiveness{
		ApplicationCount: 1,
		SuccessCount:     1,
		LastApplied:      &staleTime,
		CreatedAt:        staleTime,
	})

	removed := tr.DecayOldPatterns()
	assert.Contains(t, removed, "stale")

	removedAgain := tr.DecayOldPatterns()
	assert.Empty(t, removedAgain)
}
