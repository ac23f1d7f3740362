package main

import (
	"log"
	"os"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/embeddings"
	"github.com/d-o-hub/episodic-memory/internal/learning"
	"github.com/d-o-hub/episodic-memory/internal/memory"
	"github.com/d-o-hub/episodic-memory/internal/retrieval"
	"github.com/d-o-hub/episodic-memory/internal/reward"
	"github.com/d-o-hub/episodic-memory/internal/storage"
)

// mockEmbedderDimension matches one of the Embedding Store's dedicated
// dimension-routed tables (see internal/storage/embedstore.go), so mock
// vectors get the same top-k path as a real provider would.
const mockEmbedderDimension = 1024

// ServerComponents holds all initialized engine components, built once
// at startup and wired together into a Facade.
type ServerComponents struct {
	Storage       storage.Storage
	Embedder      embeddings.Embedder
	DomainStats   *reward.DomainStatisticsCache
	Effectiveness *effectiveness.Tracker
	Pipeline      *learning.Pipeline
	Retrieval     *retrieval.Engine
	Facade        *memory.Facade
}

// InitializeServer creates and wires all engine components. Extracted
// from main() to enable testing, following the teacher's
// InitializeServer/ServerComponents split.
func InitializeServer() (*ServerComponents, error) {
	components := &ServerComponents{}

	store, err := storage.NewStorageFromEnv()
	if err != nil {
		return nil, err
	}
	components.Storage = store
	log.Printf("initialized storage backend: %T", store)

	components.Embedder = initializeEmbedder()

	components.DomainStats = reward.NewDomainStatisticsCache()
	components.Effectiveness = effectiveness.New()

	learningCfg := learning.ConfigFromEnv()
	components.Pipeline = learning.New(learningCfg, store, components.DomainStats, components.Effectiveness)
	log.Printf("initialized learning pipeline (async=%v, reject_low_quality=%v)", learningCfg.AsyncExtraction, learningCfg.RejectLowQuality)

	components.Retrieval = retrieval.New(store, embeddingStoreOf(store), components.Embedder, components.Effectiveness)

	components.Facade = memory.New(store, components.Pipeline, components.Retrieval, components.Effectiveness)
	log.Println("memory facade ready")

	return components, nil
}

// initializeEmbedder builds an Embedder from EMBEDDINGS_* environment
// variables (see internal/embeddings/embedder.go's Config). A real
// provider is out of scope here; "mock" gives deterministic vectors for
// environments that want similarity ranking without a network call.
func initializeEmbedder() embeddings.Embedder {
	cfg := embeddings.ConfigFromEnv()
	if !cfg.Enabled {
		log.Println("embeddings disabled (EMBEDDINGS_ENABLED != true); retrieval falls back to lexical overlap")
		return nil
	}
	switch cfg.Provider {
	case "mock", "":
		log.Printf("initialized mock embedder (model=%s)", cfg.Model)
		return embeddings.NewMockEmbedder(mockEmbedderDimension)
	default:
		log.Printf("unknown embeddings provider %q, disabling embeddings", cfg.Provider)
		return nil
	}
}

// embeddingStoreOf returns store's EmbeddingStore when store is a
// *storage.SQLiteStorage (the only backend with native vector-table
// support), nil otherwise — retrieval.Engine treats nil the same as no
// embedder configured.
func embeddingStoreOf(store storage.Storage) *storage.EmbeddingStore {
	if sqliteStore, ok := store.(*storage.SQLiteStorage); ok {
		return sqliteStore.Embeddings
	}
	return nil
}

// Cleanup closes all server resources.
func (c *ServerComponents) Cleanup() error {
	if c.Storage != nil {
		return storage.CloseStorage(c.Storage)
	}
	return nil
}

func init() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}
