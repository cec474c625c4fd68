// Package storage defines the backend-agnostic repository interface for the
// ingestion pipeline and the factory registry the backends plug into.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the destination-store contract the pipeline depends on.
//
// IMPORTANT: the interface is intentionally minimal. Each backend implements
// the semantics in its own idiomatic way (Postgres COPY, MSSQL bulk copy,
// SQLite transactional inserts).
type Repository interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// CopyFrom streams one batch into the table as a single bulk operation,
	// never row-by-row statements. Returns the number of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// DistinctLineagePrefixes returns the distinct set of lineage identifiers
	// recorded in the table, with the trailing per-row sequence suffix
	// stripped. The pipeline uses the result as a skip-set for re-runs.
	DistinctLineagePrefixes(ctx context.Context, table, column string) ([]string, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
// Call from an init() in the backend package. Registering an empty kind, a
// nil factory, or the same kind twice panics: ambiguous backend selection
// should fail fast at startup, not at load time.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
