// Package memory implements a storage backend that keeps everything in RAM.
// It is the default; data is lost on restart, which is acceptable for
// deployments that only care about the live view.
package memory

import (
	"sync"
	"time"

	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/queue"
)

// Retention caps. Population matches one day of 5-second samples, heat
// snapshots one day at the default one-minute interval.
const (
	populationCap = 17280
	snapshotCap   = 1440
)

type heatSnapshot struct {
	At       time.Time
	CellSize float64
	Points   []model.HeatPoint
}

// Storage is the in-memory backend.
type Storage struct {
	mu         sync.Mutex
	population *queue.Ring[model.PopulationSample]
	snapshots  *queue.Ring[heatSnapshot]
}

// New creates an in-memory backend.
func New() *Storage {
	return &Storage{
		population: queue.NewRing[model.PopulationSample](populationCap),
		snapshots:  queue.NewRing[heatSnapshot](snapshotCap),
	}
}

// Init is a no-op for the memory backend.
func (s *Storage) Init() error { return nil }

// Close discards all held data.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.population.Clear()
	s.snapshots.Clear()
	return nil
}

// RecordPopulationSample stores one population reading.
func (s *Storage) RecordPopulationSample(sample model.PopulationSample, quality model.ViewQuality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.population.Push(sample)
	return nil
}

// RecordHeatSnapshot stores one aggregated heat map.
func (s *Storage) RecordHeatSnapshot(at time.Time, cellSize float64, points []model.HeatPoint) error {
	copied := make([]model.HeatPoint, len(points))
	copy(copied, points)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots.Push(heatSnapshot{At: at, CellSize: cellSize, Points: copied})
	return nil
}

// RecentPopulation returns up to limit samples, oldest first.
func (s *Storage) RecentPopulation(limit int) ([]model.PopulationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.population.Snapshot()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
