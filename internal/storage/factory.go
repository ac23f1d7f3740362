package storage

import (
	"fmt"
	"io"
	"log"
)

// NewStorage builds a storage backend from cfg, with graceful fallback:
// if the requested backend fails to initialize and FallbackType is set,
// it retries with that backend instead of failing outright.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case BackendMemory:
		log.Println("initializing in-memory storage backend")
		return NewMemoryStorage(), nil

	case BackendSQLite:
		log.Printf("initializing SQLite storage backend at %s", cfg.SQLitePath)
		store, err := NewSQLiteStorage(cfg.SQLitePath, cfg.SQLiteTimeout)
		if err != nil {
			if cfg.FallbackType != "" && cfg.FallbackType != cfg.Type {
				log.Printf("sqlite initialization failed: %v; falling back to %s", err, cfg.FallbackType)
				return NewStorage(Config{Type: cfg.FallbackType})
			}
			return nil, fmt.Errorf("sqlite initialization failed: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend type: %s", cfg.Type)
	}
}

// NewStorageFromEnv constructs storage using ConfigFromEnv.
func NewStorageFromEnv() (Storage, error) {
	return NewStorage(ConfigFromEnv())
}

// CloseStorage closes s if it implements io.Closer.
func CloseStorage(s Storage) error {
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
