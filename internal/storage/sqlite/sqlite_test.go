package sqlite

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/model"
)

func TestDumpAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livemap.db")
	cfg := config.SQLiteConfig{Path: path}

	b := New(cfg, slog.Default())
	require.NoError(t, b.Init())

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := b.RecordPopulationSample(model.PopulationSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Count:     i + 1,
		}, model.QualityLive)
		require.NoError(t, err)
	}
	require.NoError(t, b.Close())

	restored := New(cfg, slog.Default())
	require.NoError(t, restored.Init())
	defer restored.Close()

	samples, err := restored.RecentPopulation(0)
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, 1, samples[0].Count)
	assert.Equal(t, 5, samples[4].Count)
}

func TestDump_NoPath(t *testing.T) {
	b := New(config.SQLiteConfig{}, slog.Default())
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Error(t, b.Dump())
}

func TestInit_MissingDumpIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.db")
	b := New(config.SQLiteConfig{Path: path}, slog.Default())
	require.NoError(t, b.Init())
	defer b.Close()

	samples, err := b.RecentPopulation(0)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
