package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend selects a KV implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendBolt     Backend = "bolt"
)

// Open creates the backend named by kind. File-backed stores live under
// dataDir; Postgres requires databaseURL. The returned KV is wrapped with
// the transient-failure retry policy.
func Open(kind Backend, dataDir, databaseURL string) (KV, error) {
	inner, err := openRaw(kind, dataDir, databaseURL)
	if err != nil {
		return nil, err
	}
	return WithRetry(inner), nil
}

func openRaw(kind Backend, dataDir, databaseURL string) (KV, error) {
	switch kind {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendSQLite, "":
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
		return OpenSQLite(filepath.Join(dataDir, "aec.db"))
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		return OpenPostgres(databaseURL)
	case BackendBolt:
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
		return OpenBolt(filepath.Join(dataDir, "aec.bolt"))
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
