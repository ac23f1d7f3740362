package embeddings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-o-hub/episodic-memory/internal/embeddings"
)

type fakeBackfillStorage struct {
	items   []*embeddings.BackfillItem
	updated map[string][]float32
}

func (f *fakeBackfillStorage) ListItemsWithoutEmbeddings(itemType string, limit int) ([]*embeddings.BackfillItem, error) {
	return f.items, nil
}

func (f *fakeBackfillStorage) UpdateItemEmbedding(itemID, itemType string, embedding []float32) error {
	if f.updated == nil {
		f.updated = make(map[string][]float32)
	}
	f.updated[itemID] = embedding
	return nil
}

func TestBackfillRunner_EmbedsMissingItems(t *testing.T) {
	storage := &fakeBackfillStorage{
		items: []*embeddings.BackfillItem{
			{ItemID: "ep-1", ItemType: "episode", Text: "refactor the parser"},
			{ItemID: "ep-2", ItemType: "episode", Text: "fix flaky test"},
			{ItemID: "ep-3", ItemType: "episode", Text: ""},
		},
	}
	runner := embeddings.NewBackfillRunner(storage, embeddings.NewMockEmbedder(64), embeddings.DefaultBackfillConfig())

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Skipped)
	assert.Len(t, storage.updated, 2)
}

func TestBackfillRunner_DryRunDoesNotWrite(t *testing.T) {
	storage := &fakeBackfillStorage{
		items: []*embeddings.BackfillItem{{ItemID: "ep-1", ItemType: "episode", Text: "add caching layer"}},
	}
	cfg := embeddings.DefaultBackfillConfig()
	cfg.DryRun = true
	runner := embeddings.NewBackfillRunner(storage, embeddings.NewMockEmbedder(32), cfg)

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Succeeded)
	assert.Empty(t, storage.updated)
}

func TestBackfillRunner_EmbedderFailureCounted(t *testing.T) {
	storage := &fakeBackfillStorage{
		items: []*embeddings.BackfillItem{{ItemID: "ep-1", ItemType: "episode", Text: "add caching layer"}},
	}
	runner := embeddings.NewBackfillRunner(storage, embeddings.NewFailingMockEmbedder(), embeddings.DefaultBackfillConfig())

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Failed)
}

func TestBackfillRunner_RequiresStorageAndEmbedder(t *testing.T) {
	_, err := embeddings.NewBackfillRunner(nil, embeddings.NewMockEmbedder(8), nil).Run(context.Background())
	assert.Error(t, err)

	_, err = embeddings.NewBackfillRunner(&fakeBackfillStorage{}, nil, nil).Run(context.Background())
	assert.Error(t, err)
}
