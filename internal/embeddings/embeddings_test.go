package embeddings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/embeddings"
)

func TestDefaultConfig(t *testing.T) {
	cfg := embeddings.DefaultConfig()
	require.NotNil(t, cfg)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, 60, cfg.RRFParameter)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EMBEDDINGS_ENABLED", "true")
	t.Setenv("EMBEDDINGS_PROVIDER", "custom")
	t.Setenv("EMBEDDINGS_MIN_SIMILARITY", "0.42")

	cfg := embeddings.ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "custom", cfg.Provider)
	assert.InDelta(t, 0.42, cfg.MinSimilarity, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, embeddings.CosineSimilarity(a, b), 1e-9)

	c := []float32{0, 1, 0}
	assert.InDelta(t, 0.0, embeddings.CosineSimilarity(a, c), 1e-9)

	assert.Equal(t, 0.0, embeddings.CosineSimilarity(a, []float32{1, 0}))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	vec := []float32{0.125, -2.5, 3.0, 17.75}
	data := embeddings.SerializeFloat32(vec)
	require.Len(t, data, len(vec)*4)

	round := embeddings.DeserializeFloat32(data)
	require.Len(t, round, len(vec))
	for i := range vec {
		assert.InDelta(t, vec[i], round[i], 1e-6)
	}
}

func TestSerializeEmptyVector(t *testing.T) {
	assert.Nil(t, embeddings.SerializeFloat32(nil))
	assert.Nil(t, embeddings.DeserializeFloat32(nil))
}

func TestNormalizeVector(t *testing.T) {
	vec := []float32{3, 4}
	norm := embeddings.NormalizeVector(vec)
	magnitude := embeddings.DotProduct(norm, norm)
	assert.InDelta(t, 1.0, magnitude, 1e-6)
}
