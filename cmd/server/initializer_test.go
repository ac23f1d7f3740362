package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeServerWithMemoryBackend(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("EMBEDDINGS_ENABLED", "false")

	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	assert.NotNil(t, components.Storage)
	assert.NotNil(t, components.Pipeline)
	assert.NotNil(t, components.Retrieval)
	assert.NotNil(t, components.Facade)
	assert.Nil(t, components.Embedder)
}

func TestInitializeServerWithMockEmbedderEnabled(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("EMBEDDINGS_ENABLED", "true")
	t.Setenv("EMBEDDINGS_PROVIDER", "mock")

	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	require.NotNil(t, components.Embedder)
	assert.Equal(t, "mock", components.Embedder.Provider())
}

func TestInitializeServerWithSQLiteBackendExposesEmbeddingStore(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", t.TempDir()+"/test.db")

	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	assert.NotNil(t, embeddingStoreOf(components.Storage))
}

func TestCleanupClosesStorage(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	components, err := InitializeServer()
	require.NoError(t, err)
	assert.NoError(t, components.Cleanup())
}
