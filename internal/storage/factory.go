package storage

import (
	"fmt"
	"os"
)

const defaultStoreEnv = "POLYEVOLVE_STORE"

// DefaultStoreKind honors POLYEVOLVE_STORE and falls back to sqlite.
func DefaultStoreKind() string {
	if kind := os.Getenv(defaultStoreEnv); kind != "" {
		return kind
	}
	return "sqlite"
}

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
