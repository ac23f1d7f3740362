package embeddings

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// BackfillStorage is the minimal surface backfill needs from the
// embedding store: list items lacking a vector, then write one back.
type BackfillStorage interface {
	ListItemsWithoutEmbeddings(itemType string, limit int) ([]*BackfillItem, error)
	UpdateItemEmbedding(itemID, itemType string, embedding []float32) error
}

// BackfillItem is an episode or pattern awaiting embedding generation.
type BackfillItem struct {
	ItemID   string
	ItemType string
	Text     string // task description or pattern summary to embed
}

// BackfillStats tracks a backfill run's outcome.
type BackfillStats struct {
	Total     int64
	Processed int64
	Succeeded int64
	Failed    int64
	Skipped   int64
	Duration  time.Duration
}

// BackfillConfig configures a backfill run.
type BackfillConfig struct {
	ItemType       string
	BatchSize      int
	MaxConcurrency int
	Timeout        time.Duration
	DryRun         bool
}

// DefaultBackfillConfig returns sensible defaults.
func DefaultBackfillConfig() *BackfillConfig {
	return &BackfillConfig{
		ItemType:       "episode",
		BatchSize:      100,
		MaxConcurrency: 5,
		Timeout:        30 * time.Second,
		DryRun:         false,
	}
}

// BackfillRunner generates and stores missing embeddings for existing
// episodes or patterns, used when embeddings are enabled after data
// already exists, or after a model/dimension change.
type BackfillRunner struct {
	storage  BackfillStorage
	embedder Embedder
	config   *BackfillConfig
}

// NewBackfillRunner constructs a runner over storage using embedder.
func NewBackfillRunner(storage BackfillStorage, embedder Embedder, config *BackfillConfig) *BackfillRunner {
	if config == nil {
		config = DefaultBackfillConfig()
	}
	return &BackfillRunner{storage: storage, embedder: embedder, config: config}
}

// Run fetches one batch of items missing embeddings and processes them
// concurrently, bounded by config.MaxConcurrency.
func (r *BackfillRunner) Run(ctx context.Context) (*BackfillStats, error) {
	start := time.Now()
	stats := &BackfillStats{}

	if r.storage == nil {
		return stats, fmt.Errorf("storage is nil")
	}
	if r.embedder == nil {
		return stats, fmt.Errorf("embedder is nil")
	}

	items, err := r.storage.ListItemsWithoutEmbeddings(r.config.ItemType, r.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list items needing embeddings: %w", err)
	}

	atomic.StoreInt64(&stats.Total, int64(len(items)))
	if len(items) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	log.Printf("embeddings backfill: %d %s items, concurrency=%d dry_run=%v",
		len(items), r.config.ItemType, r.config.MaxConcurrency, r.config.DryRun)

	semaphore := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			stats.Duration = time.Since(start)
			return stats, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(it *BackfillItem) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			r.processItem(ctx, it, stats)
		}(item)
	}

	wg.Wait()
	stats.Duration = time.Since(start)
	log.Printf("embeddings backfill complete: processed=%d succeeded=%d failed=%d skipped=%d duration=%v",
		stats.Processed, stats.Succeeded, stats.Failed, stats.Skipped, stats.Duration)
	return stats, nil
}

func (r *BackfillRunner) processItem(ctx context.Context, item *BackfillItem, stats *BackfillStats) {
	atomic.AddInt64(&stats.Processed, 1)

	if item.Text == "" {
		atomic.AddInt64(&stats.Skipped, 1)
		log.Printf("[SKIP] %s %s: no text to embed", item.ItemType, item.ItemID)
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	vector, err := r.embedder.Embed(embedCtx, item.Text)
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		log.Printf("[FAIL] %s %s: embedding failed: %v", item.ItemType, item.ItemID, err)
		return
	}
	if len(vector) == 0 {
		atomic.AddInt64(&stats.Failed, 1)
		log.Printf("[FAIL] %s %s: empty embedding returned", item.ItemType, item.ItemID)
		return
	}

	if r.config.DryRun {
		atomic.AddInt64(&stats.Succeeded, 1)
		log.Printf("[DRY-RUN] %s %s: would store %d-dim embedding", item.ItemType, item.ItemID, len(vector))
		return
	}

	if err := r.storage.UpdateItemEmbedding(item.ItemID, item.ItemType, vector); err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		log.Printf("[FAIL] %s %s: storage update failed: %v", item.ItemType, item.ItemID, err)
		return
	}

	atomic.AddInt64(&stats.Succeeded, 1)
}
