package storage

import (
	"fmt"
	"log/slog"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/storage/memory"
	"github.com/velocityrp/livemap/internal/storage/postgres"
	"github.com/velocityrp/livemap/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, logger), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite, logger), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
