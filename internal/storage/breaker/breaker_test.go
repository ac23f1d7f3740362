package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/storage/breaker"
)

func TestStaysClosedOnSuccess(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 3, Timeout: time.Second})
	for i := 0; i < 5; i++ {
		err := cb.Call(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, breaker.Closed, cb.State())
}

func TestOpensAfterThresholdConsecutiveFailures(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 3, Timeout: time.Second})
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return failing })
	}
	assert.Equal(t, breaker.Open, cb.State())

	err := cb.Call(context.Background(), func(context.Context) error {
		t.Fatal("fn must not run while circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen{})
}

func TestHalfOpenAfterTimeoutThenCloses(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: 20 * time.Millisecond})
	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("fail") })
	require.Equal(t, breaker.Open, cb.State())

	time.Sleep(30 * time.Millisecond)

	err := cb.Call(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, breaker.Closed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: 20 * time.Millisecond})
	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("fail") })
	time.Sleep(30 * time.Millisecond)

	err := cb.Call(context.Background(), func(context.Context) error { return errors.New("still failing") })
	assert.Error(t, err)
	assert.Equal(t, breaker.Open, cb.State())
}

func TestResetClearsState(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: time.Hour})
	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("fail") })
	require.Equal(t, breaker.Open, cb.State())

	cb.Reset()
	assert.Equal(t, breaker.Closed, cb.State())
	assert.Equal(t, 0, cb.Stats().ConsecutiveFailures)
}

func TestStatsTrackCounts(t *testing.T) {
	cb := breaker.New(breaker.DefaultConfig())
	_ = cb.Call(context.Background(), func(context.Context) error { return nil })
	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("x") })

	stats := cb.Stats()
	assert.EqualValues(t, 2, stats.TotalCalls)
	assert.EqualValues(t, 1, stats.SuccessfulCalls)
	assert.EqualValues(t, 1, stats.FailedCalls)
}
