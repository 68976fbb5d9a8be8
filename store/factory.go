package store

import (
	"fmt"
	"path/filepath"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"memory" - In-memory, seeded from dataDir on every start (default)
//	"sqlite" - SQLite database at dataDir/reviews.db
func New(backend, dataDir string) (Store, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "reviews.db")
		return NewSqliteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, sqlite)", backend)
	}
}
