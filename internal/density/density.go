// Package density bins player positions into a square grid and emits
// normalized intensity points for hotspot visualization. Snapshots are
// recomputed per request and never persisted here.
package density

import (
	"math"
	"sort"

	"github.com/velocityrp/livemap/internal/model"
)

// DefaultCellSize is the documented default cell side in world units.
const DefaultCellSize = 500.0

// Aggregate buckets the views into cells of side cellSize keyed by
// (floor(x/cellSize), floor(y/cellSize)). Sentinel entries contribute no
// spatial signal and are excluded. Intensity is count over the busiest
// cell, so the output is order-independent for the same input set. The
// result is sorted by cell key for a stable wire representation.
func Aggregate(views []model.MergedPlayerView, cellSize float64) []model.HeatPoint {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}

	counts := make(map[model.CellKey]int)
	for _, v := range views {
		if v.Sentinel() {
			continue
		}
		key := model.CellKey{
			X: int(math.Floor(v.X / cellSize)),
			Y: int(math.Floor(v.Y / cellSize)),
		}
		counts[key]++
	}

	if len(counts) == 0 {
		return []model.HeatPoint{}
	}

	max := 1
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	points := make([]model.HeatPoint, 0, len(counts))
	for key, count := range counts {
		points = append(points, model.HeatPoint{
			CellX:     Centroid(key.X, cellSize),
			CellY:     Centroid(key.Y, cellSize),
			Count:     count,
			Intensity: float64(count) / float64(max),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].CellX != points[j].CellX {
			return points[i].CellX < points[j].CellX
		}
		return points[i].CellY < points[j].CellY
	})
	return points
}

// Centroid returns the world coordinate of a cell's center along one axis.
func Centroid(index int, cellSize float64) float64 {
	return (float64(index) + 0.5) * cellSize
}
