// Package gormdb holds the GORM schema and write logic shared by the sqlite
// and postgres backends. The backends differ only in how they open the
// database and in their maintenance loops.
package gormdb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/velocityrp/livemap/internal/geo"
	"github.com/velocityrp/livemap/internal/model"
)

// PopulationSample is one persisted population reading.
type PopulationSample struct {
	ID        uint      `gorm:"primarykey"`
	Timestamp time.Time `gorm:"index"`
	Count     int
	Quality   string
}

// HeatSnapshot is one persisted heat map. The full cell list is kept as a
// JSON document for cheap reads; individual cells are additionally rowed out
// with WKB centroids for spatial tooling.
type HeatSnapshot struct {
	ID        uint      `gorm:"primarykey"`
	Timestamp time.Time `gorm:"index"`
	CellSize  float64
	Cells     datatypes.JSON
}

// HeatCell is one cell of a persisted heat snapshot. CellX/CellY are the
// cell's centroid in world coordinates; Centroid is the same point encoded
// as WKB.
type HeatCell struct {
	ID         uint `gorm:"primarykey"`
	SnapshotID uint `gorm:"index"`
	CellX      float64
	CellY      float64
	Count      int
	Intensity  float64
	Centroid   []byte
}

// Store wraps a gorm.DB with the service's write operations.
type Store struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	err := s.DB.AutoMigrate(
		&PopulationSample{},
		&HeatSnapshot{},
		&HeatCell{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RecordPopulationSample persists one population reading.
func (s *Store) RecordPopulationSample(sample model.PopulationSample, quality model.ViewQuality) error {
	row := PopulationSample{
		Timestamp: sample.Timestamp,
		Count:     sample.Count,
		Quality:   string(quality),
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record population sample: %w", err)
	}
	return nil
}

// RecordHeatSnapshot persists an aggregated heat map and its cells in one
// transaction.
func (s *Store) RecordHeatSnapshot(at time.Time, cellSize float64, points []model.HeatPoint) error {
	doc, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode heat cells: %w", err)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		snapshot := HeatSnapshot{
			Timestamp: at,
			CellSize:  cellSize,
			Cells:     datatypes.JSON(doc),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to record heat snapshot: %w", err)
		}

		if len(points) == 0 {
			return nil
		}

		cells := make([]HeatCell, 0, len(points))
		for _, p := range points {
			cells = append(cells, HeatCell{
				SnapshotID: snapshot.ID,
				CellX:      p.CellX,
				CellY:      p.CellY,
				Count:      p.Count,
				Intensity:  p.Intensity,
				Centroid:   geo.CellWKB(p.CellX, p.CellY),
			})
		}
		if err := tx.Create(&cells).Error; err != nil {
			return fmt.Errorf("failed to record heat cells: %w", err)
		}
		return nil
	})
}

// RecentPopulation returns up to limit samples, oldest first.
func (s *Store) RecentPopulation(limit int) ([]model.PopulationSample, error) {
	query := s.DB.Model(&PopulationSample{}).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []PopulationSample
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read population samples: %w", err)
	}

	// query returns newest first, callers want oldest first
	samples := make([]model.PopulationSample, len(rows))
	for i, row := range rows {
		samples[len(rows)-1-i] = model.PopulationSample{
			Timestamp: row.Timestamp,
			Count:     row.Count,
		}
	}
	return samples, nil
}
