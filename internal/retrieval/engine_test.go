package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/embeddings"
	"github.com/d-o-hub/episodic-memory/internal/retrieval"
	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

func seedEpisode(t *testing.T, st *storage.MemoryStorage, embed *storage.EmbeddingStore, emb embeddings.Embedder, id, domain, text string) {
	t.Helper()
	ep := &types.Episode{
		EpisodeID:       id,
		TaskDescription: text,
		Context:         types.TaskContext{Domain: domain, Tags: []string{"auth"}},
		Tags:            []string{"auth"},
	}
	require.NoError(t, st.StoreEpisode(ep))

	if embed != nil {
		ctx := context.Background()
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, embed.Store(types.Embedding{ItemID: id, ItemType: types.ItemEpisode, Dimension: len(vec), Vector: vec, Model: emb.Model()}))
	}
}

func TestRetrieveEpisodesFallsBackToLexicalOverlapWithoutEmbedder(t *testing.T) {
	st := storage.NewMemoryStorage()
	seedEpisode(t, st, nil, nil, "ep-1", "backend", "add authentication to API")
	seedEpisode(t, st, nil, nil, "ep-2", "frontend", "style the login button")

	engine := retrieval.New(st, nil, nil, effectiveness.New())
	resp, err := engine.RetrieveEpisodes(context.Background(), retrieval.Query{
		Text:    "add authentication",
		Context: types.TaskContext{Domain: "backend", Tags: []string{"auth"}},
		Limit:   5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "ep-1", resp.Results[0].Episode.EpisodeID)
}

func TestRetrieveEpisodesWithoutEmbedderMatchesOnDomainAlone(t *testing.T) {
	st := storage.NewMemoryStorage()
	mock := embeddings.NewMockEmbedder(8)

	// No EmbeddingStore and no embedder are configured, so ranking takes
	// the lexical-overlap path. The query carries no tags, so the episode
	// is found through its domain alone.
	seedEpisode(t, st, nil, mock, "ep-1", "backend", "add authentication to API")

	engine := retrieval.New(st, nil, nil, effectiveness.New())
	resp, err := engine.RetrieveEpisodes(context.Background(), retrieval.Query{
		Text:    "add authentication",
		Context: types.TaskContext{Domain: "backend"},
		Limit:   5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestRetrieveEpisodesReturnsEmptyResponseWithNoCandidates(t *testing.T) {
	st := storage.NewMemoryStorage()
	engine := retrieval.New(st, nil, nil, effectiveness.New())

	resp, err := engine.RetrieveEpisodes(context.Background(), retrieval.Query{Text: "anything", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0.0, resp.DiversityScore)
}

func TestNotifyRetrievalIncrementsEffectivenessTracker(t *testing.T) {
	eff := effectiveness.New()
	engine := retrieval.New(storage.NewMemoryStorage(), nil, nil, eff)

	engine.NotifyRetrieval([]string{"p1", "p1", "p2"})

	p1, ok := eff.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 2, p1.RetrievalCount)
}
