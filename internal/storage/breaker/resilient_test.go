package breaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/storage/breaker"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func newTestEpisode(id string) *types.Episode {
	return &types.Episode{
		EpisodeID:       id,
		TaskType:        types.TaskDebugging,
		TaskDescription: "fix the thing",
		Context:         types.TaskContext{Domain: "backend"},
		StartTime:       time.Now(),
	}
}

func TestResilientStorageHappyPath(t *testing.T) {
	primary := storage.NewMemoryStorage()
	rs := breaker.NewResilientStorage(primary, breaker.DefaultConfig(), nil)

	ep := newTestEpisode("ep-1")
	require.NoError(t, rs.StoreEpisode(ep))

	got, err := rs.GetEpisode("ep-1")
	require.NoError(t, err)
	assert.Equal(t, ep.EpisodeID, got.EpisodeID)

	_, err = primary.GetEpisode("ep-1")
	assert.NoError(t, err, "primary should have received the write too")
}

// failingStorage always errors, to force the circuit open.
type failingStorage struct{ storage.Storage }

func (failingStorage) StoreEpisode(*types.Episode) error {
	return types.NewError(types.ErrTransient, "simulated primary outage")
}
func (failingStorage) GetEpisode(string) (*types.Episode, error) {
	return nil, types.NewError(types.ErrTransient, "simulated primary outage")
}
func (failingStorage) HealthCheck() bool { return false }

func TestResilientStorageFallsBackToCacheWhenCircuitOpens(t *testing.T) {
	rs := breaker.NewResilientStorage(failingStorage{Storage: storage.NewMemoryStorage()},
		breaker.Config{FailureThreshold: 2, Timeout: time.Hour}, nil)

	ep := newTestEpisode("ep-2")
	require.NoError(t, rs.StoreEpisode(ep)) // cache write succeeds even though primary fails
	require.NoError(t, rs.StoreEpisode(ep)) // second failure opens the circuit

	assert.Equal(t, breaker.Open, rs.CircuitState())

	got, err := rs.GetEpisode("ep-2")
	require.NoError(t, err, "should serve from cache once circuit is open")
	assert.Equal(t, ep.EpisodeID, got.EpisodeID)
	assert.False(t, rs.HealthCheck())
}

func TestResilientStorageMarksDirtyOnPrimaryFailure(t *testing.T) {
	rs := breaker.NewResilientStorage(failingStorage{Storage: storage.NewMemoryStorage()},
		breaker.Config{FailureThreshold: 100, Timeout: time.Hour}, nil)

	ep := newTestEpisode("ep-3")
	require.NoError(t, rs.StoreEpisode(ep))
	assert.Equal(t, 1, rs.DirtyCount())
}

func TestResilientStorageResetCircuit(t *testing.T) {
	rs := breaker.NewResilientStorage(failingStorage{Storage: storage.NewMemoryStorage()},
		breaker.Config{FailureThreshold: 1, Timeout: time.Hour}, nil)

	require.NoError(t, rs.StoreEpisode(newTestEpisode("ep-4")))
	assert.Equal(t, breaker.Open, rs.CircuitState())

	rs.ResetCircuit()
	assert.Equal(t, breaker.Closed, rs.CircuitState())
}
