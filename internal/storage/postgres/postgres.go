// Package postgres implements the storage.Backend interface against a
// PostgreSQL database. The write path lives in the shared gormdb package;
// this package only handles the connection.
package postgres

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/storage/gormdb"
)

// Backend wraps the shared GORM store with a PostgreSQL connection.
type Backend struct {
	*gormdb.Store
	cfg    config.PostgresConfig
	logger *slog.Logger
}

// New creates a new PostgreSQL storage backend.
func New(cfg config.PostgresConfig, logger *slog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		logger: logger,
	}
}

// Init connects to the database and migrates the schema.
func (b *Backend) Init() error {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		b.cfg.Host,
		b.cfg.Port,
		b.cfg.Username,
		b.cfg.Password,
		b.cfg.Database,
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	b.Store = &gormdb.Store{DB: db, Logger: b.logger}
	if err := b.Store.Migrate(); err != nil {
		return err
	}

	b.logger.Info("Postgres storage backend initialized", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	if b.Store == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
