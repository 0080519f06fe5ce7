package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const DefaultStoreKind = "file"

// NewStore builds a checkpoint backend. path is the directory for "file" and
// the database file for "sqlite"; "memory" ignores it.
func NewStore(kind, path, prefix string) (CheckpointStore, error) {
	switch kind {
	case "", DefaultStoreKind:
		return NewFileStore(path, prefix), nil
	case "memory":
		return NewMemoryStore(prefix), nil
	case "sqlite":
		return newSQLiteStore(path, prefix)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store CheckpointStore) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// SetLoggerIfSupported routes a backend's skipped-record messages to log.
// Call it before the store is shared between goroutines.
func SetLoggerIfSupported(store CheckpointStore, log logrus.FieldLogger) {
	if setter, ok := store.(interface{ SetLogger(logrus.FieldLogger) }); ok {
		setter.SetLogger(log)
	}
}
