// Package sqlite implements the storage.Backend interface using an
// in-memory SQLite database with periodic disk dumps via VACUUM INTO. The
// write path lives in the shared gormdb package; the only SQLite-specific
// concerns are opening the in-memory DB, re-seeding it from the last dump,
// and the dump loop.
package sqlite

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/storage/gormdb"
)

// Backend wraps the shared GORM store with SQLite-specific behavior.
type Backend struct {
	*gormdb.Store
	cfg      config.SQLiteConfig
	logger   *slog.Logger
	stopChan chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	return &Backend{
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Init opens the in-memory database, migrates the schema and starts the
// dump loop. If a previous dump file exists its population history is
// loaded first.
func (b *Backend) Init() error {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	b.Store = &gormdb.Store{DB: db, Logger: b.logger}
	if err := b.Store.Migrate(); err != nil {
		return err
	}

	if err := b.restoreFromDump(); err != nil {
		// a corrupt or missing dump is not fatal, start empty
		b.logger.Warn("Could not restore previous SQLite dump", "path", b.cfg.Path, "error", err)
	}

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump loop, writes a final dump and releases the
// in-memory database.
func (b *Backend) Close() error {
	close(b.stopChan)
	if b.cfg.Path != "" {
		if err := b.Dump(); err != nil {
			return err
		}
	}
	if b.Store != nil {
		if sqlDB, err := b.DB.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

// Dump vacuums the in-memory database to the configured disk file.
// VACUUM INTO creates a point-in-time snapshot, so no pause is needed.
func (b *Backend) Dump() error {
	if b.cfg.Path == "" {
		return fmt.Errorf("sqlite dump path not set")
	}

	if _, err := os.Stat(b.cfg.Path); err == nil {
		if err := os.Remove(b.cfg.Path); err != nil {
			return fmt.Errorf("error removing existing DB file: %s", err)
		}
	}

	if err := b.DB.Exec("VACUUM INTO 'file:" + b.cfg.Path + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %s", err)
	}
	return nil
}

// restoreFromDump copies population history from the previous dump file
// into the fresh in-memory database.
func (b *Backend) restoreFromDump() error {
	if b.cfg.Path == "" {
		return nil
	}
	if _, err := os.Stat(b.cfg.Path); err != nil {
		return nil
	}

	diskDB, err := gorm.Open(sqlite.Open(b.cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open previous dump: %w", err)
	}

	var rows []gormdb.PopulationSample
	if err := diskDB.Order("timestamp ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to read previous dump: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		rows[i].ID = 0
	}
	if err := b.DB.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to re-seed population history: %w", err)
	}

	b.logger.Info("Restored population history from dump", "samples", len(rows))
	return nil
}

func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.logger.Error("Error dumping to disk", "error", err)
			} else {
				b.logger.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
