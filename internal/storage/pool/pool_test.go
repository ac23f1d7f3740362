package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/storage/pool"
)

func testConfig() pool.Config {
	cfg := pool.DefaultConfig()
	cfg.MinConnections = 2
	cfg.MaxConnections = 4
	cfg.ScaleUpThreshold = 0.5
	cfg.ScaleDownThreshold = 0.1
	cfg.ScaleUpIncrement = 2
	cfg.ScaleDownDecrement = 1
	cfg.ScaleUpCooldown = 0
	cfg.ScaleDownCooldown = 0
	cfg.CheckInterval = time.Hour // disable ticker races; tests call CheckAndScale directly
	return cfg
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := pool.New(testConfig())
	defer p.Shutdown()

	permit, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.ActiveConnections())

	permit.Release()
	assert.EqualValues(t, 0, p.ActiveConnections())
}

func TestAcquireTimeoutWhenExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p := pool.New(cfg)
	defer p.Shutdown()

	permit, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), 20*time.Millisecond)
	assert.Error(t, err)

	permit.Release()
}

func TestScaleUpUnderHighUtilization(t *testing.T) {
	p := pool.New(testConfig())
	defer p.Shutdown()

	p1, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	p2, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	p.CheckAndScale()
	assert.EqualValues(t, 4, p.MaxConnections())

	p1.Release()
	p2.Release()
}

func TestScaleDownUnderLowUtilization(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	p := pool.New(cfg)
	defer p.Shutdown()

	// Scale up from 1 to 3 first, so there is something to scale down.
	permit, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	p.CheckAndScale()
	require.EqualValues(t, 3, p.MaxConnections())
	permit.Release()

	p.CheckAndScale()
	p.CheckAndScale()
	assert.EqualValues(t, 1, p.MaxConnections())
	assert.EqualValues(t, 2, p.Metrics().ScaleDownCount)
}

func TestMetricsReflectActivity(t *testing.T) {
	p := pool.New(testConfig())
	defer p.Shutdown()

	permit, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	m := p.Metrics()
	assert.EqualValues(t, 1, m.ActiveConnections)
	assert.EqualValues(t, 1, m.TotalAcquired)

	permit.Release()
	m = p.Metrics()
	assert.EqualValues(t, 1, m.TotalReleased)
}

func TestContextCancellationDuringAcquire(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p := pool.New(cfg)
	defer p.Shutdown()

	permit, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer permit.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
