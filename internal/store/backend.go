package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
)

// Backend persists opaque snapshots under string keys.
type Backend interface {
	// Read returns the snapshot stored under key, or nil if there is none.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the snapshot stored under key.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes the snapshot stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the resources held by the backend.
	Close() error
}

// OpenBackend opens the backend selected by the configuration and applies
// the SQL migrations where needed.
func OpenBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Store.Backend {
	case "file":
		return NewFileBackend(cfg.Store.Path), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Store.Path, logger)
	case "postgres":
		return OpenPostgres(ctx, cfg.Store.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Open opens the configured backend and loads the store from it.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := New(backend, cfg.Store.Key, logger)
	if err := s.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}

	logger.Debug("store opened",
		zap.String("backend", cfg.Store.Backend),
		zap.Int("records", s.Len()),
	)
	return s, nil
}
