package gormdb

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/velocityrp/livemap/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := &Store{DB: db, Logger: slog.Default()}
	require.NoError(t, s.Migrate())
	return s
}

func TestRecordPopulationSample_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.RecordPopulationSample(model.PopulationSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Count:     10 + i,
		}, model.QualityLive)
		require.NoError(t, err)
	}

	samples, err := s.RecentPopulation(0)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, 10, samples[0].Count)
	assert.Equal(t, 12, samples[2].Count)
	assert.True(t, samples[0].Timestamp.Before(samples[2].Timestamp))
}

func TestRecentPopulation_Limit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		err := s.RecordPopulationSample(model.PopulationSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Count:     i,
		}, model.QualityCached)
		require.NoError(t, err)
	}

	samples, err := s.RecentPopulation(4)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.Equal(t, 6, samples[0].Count)
	assert.Equal(t, 9, samples[3].Count)
}

func TestRecordHeatSnapshot_PersistsCellsAndJSON(t *testing.T) {
	s := openTestStore(t)

	points := []model.HeatPoint{
		{CellX: 250, CellY: 250, Count: 4, Intensity: 1},
		{CellX: -250, CellY: 1250, Count: 2, Intensity: 0.5},
	}
	require.NoError(t, s.RecordHeatSnapshot(time.Now(), 500, points))

	var snapshot HeatSnapshot
	require.NoError(t, s.DB.First(&snapshot).Error)
	assert.Equal(t, 500.0, snapshot.CellSize)

	var decoded []model.HeatPoint
	require.NoError(t, json.Unmarshal(snapshot.Cells, &decoded))
	assert.Equal(t, points, decoded)

	var cells []HeatCell
	require.NoError(t, s.DB.Where("snapshot_id = ?", snapshot.ID).Order("cell_x").Find(&cells).Error)
	require.Len(t, cells, 2)
	assert.Equal(t, -250.0, cells[0].CellX)
	// WKB point header is 21 bytes: byte order, type, two float64s
	assert.Len(t, cells[0].Centroid, 21)
}

func TestRecordHeatSnapshot_EmptyMap(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordHeatSnapshot(time.Now(), 500, nil))

	var count int64
	require.NoError(t, s.DB.Model(&HeatSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, s.DB.Model(&HeatCell{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
