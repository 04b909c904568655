// Package storage defines the persistence interface for aggregated world
// state. Backends keep population history and heat-map snapshots across
// restarts; the live position store itself is never persisted.
package storage

import (
	"time"

	"github.com/velocityrp/livemap/internal/model"
)

// Backend is the interface all storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordPopulationSample persists one population reading together with
	// the view quality it was served under.
	RecordPopulationSample(sample model.PopulationSample, quality model.ViewQuality) error

	// RecordHeatSnapshot persists an aggregated heat map at a point in time.
	RecordHeatSnapshot(at time.Time, cellSize float64, points []model.HeatPoint) error

	// RecentPopulation returns up to limit samples, oldest first. Used to
	// re-seed the in-memory history ring after a restart.
	RecentPopulation(limit int) ([]model.PopulationSample, error)
}

// Dumper is an optional interface for backends that can write a consistent
// copy of their data to a separate file while running.
type Dumper interface {
	Dump() error
}
