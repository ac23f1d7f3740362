// Package storage provides the dual-backend storage substrate: a
// SQLite-backed Primary store and an in-memory Cache store, both
// satisfying the Storage capability set in interface.go.
package storage

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// BackendType selects which concrete Storage implementation to construct.
type BackendType string

const (
	// BackendMemory uses in-memory storage only (default, no durability).
	BackendMemory BackendType = "memory"
	// BackendSQLite uses the SQLite-backed Primary store.
	BackendSQLite BackendType = "sqlite"
)

// Config holds storage configuration, mirroring the Storage section of
// spec §6's configuration surface.
type Config struct {
	Type BackendType
	// FallbackType is used when Type fails to initialize (e.g. the
	// SQLite file cannot be opened); empty disables fallback.
	FallbackType BackendType

	PrimaryURL   string // reserved for a future remote-capable primary
	PrimaryToken string
	CachePath    string

	SQLitePath    string
	SQLiteTimeout int // busy timeout in milliseconds

	EnableCompression       bool
	CompressionThresholdBytes int
}

// DefaultConfig returns the default configuration: in-memory only, with
// EnableCompression set and a 1 KiB CompressionThresholdBytes. No
// backend reads the compression fields.
func DefaultConfig() Config {
	return Config{
		Type:                      BackendMemory,
		FallbackType:              "",
		CachePath:                 "./data/memory-cache.db",
		SQLitePath:                "./data/episodic-memory.db",
		SQLiteTimeout:             5000,
		EnableCompression:         true,
		CompressionThresholdBytes: 1024,
	}
}

// ConfigFromEnv reads storage configuration from environment variables:
//   - STORAGE_TYPE: "memory" (default) or "sqlite"
//   - STORAGE_FALLBACK_TYPE: backend to fall back to on init failure
//   - SQLITE_PATH, SQLITE_TIMEOUT
//   - STORAGE_ENABLE_COMPRESSION, STORAGE_COMPRESSION_THRESHOLD_BYTES
//
// Unknown keys are ignored; this function never errs. A numeric value
// that does not parse or is not positive is ignored and the default is
// kept; NewStorage does not validate numeric ranges either.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Type = BackendType(v)
	}
	if v := os.Getenv("STORAGE_FALLBACK_TYPE"); v != "" {
		cfg.FallbackType = BackendType(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if cfg.Type == BackendSQLite {
		dir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			log.Printf("warning: failed to create SQLite directory %s: %v (factory will handle this)", dir, err)
		}
	}
	if v := os.Getenv("SQLITE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SQLiteTimeout = n
		}
	}
	if v := os.Getenv("STORAGE_ENABLE_COMPRESSION"); v != "" {
		cfg.EnableCompression = v == "true" || v == "1"
	}
	if v := os.Getenv("STORAGE_COMPRESSION_THRESHOLD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CompressionThresholdBytes = n
		}
	}

	return cfg
}
