package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStartupSmokeEpisodeCompletesSuccessfully(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")

	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	err = runStartupSmokeEpisode(components)
	require.NoError(t, err)

	stats, err := components.Facade.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.OpenEpisodes)
	assert.Equal(t, 1, stats.TotalEpisodes)
	assert.Equal(t, 1, stats.CompletedEpisodes)
}
