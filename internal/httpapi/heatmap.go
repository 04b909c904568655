package httpapi

import (
	"net/http"
	"strconv"

	"github.com/velocityrp/livemap/internal/density"
	"github.com/velocityrp/livemap/internal/model"
)

// HeatmapResponse is the payload of GET /heatmap and of heatmap events
// broadcast to the map room.
type HeatmapResponse struct {
	CellSize float64       `json:"cellSize"`
	Points   []HeatmapCell `json:"points"`
}

// HeatmapCell is one aggregated cell with its centroid projected to 4326
// for the frontend's tile layer.
type HeatmapCell struct {
	model.HeatPoint
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func emptyHeatmapResponse(cellSize float64) HeatmapResponse {
	return HeatmapResponse{CellSize: cellSize, Points: []HeatmapCell{}}
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	cellSize := s.deps.Density.CellSize
	if raw := r.URL.Query().Get("cellSize"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cellSize")
			return
		}
		cellSize = parsed
	}
	cellSize = s.clampCellSize(cellSize)

	resp := s.positionsCache.Get()
	writeJSON(w, http.StatusOK, s.computeHeatmap(resp.Players, cellSize))
}

func (s *Server) computeHeatmap(views []model.MergedPlayerView, cellSize float64) HeatmapResponse {
	cellSize = s.clampCellSize(cellSize)
	points := density.Aggregate(views, cellSize)
	cells := make([]HeatmapCell, len(points))
	for i, p := range points {
		lat, lng := s.projection.LatLng(p.CellX, p.CellY)
		cells[i] = HeatmapCell{HeatPoint: p, Lat: lat, Lng: lng}
	}
	return HeatmapResponse{CellSize: cellSize, Points: cells}
}

// clampCellSize keeps requested cell sizes inside the configured range so a
// viewer cannot request a degenerate grid.
func (s *Server) clampCellSize(cellSize float64) float64 {
	if cellSize <= 0 {
		cellSize = s.deps.Density.CellSize
	}
	if cellSize <= 0 {
		cellSize = density.DefaultCellSize
	}
	if min := s.deps.Density.MinCellSize; min > 0 && cellSize < min {
		cellSize = min
	}
	if max := s.deps.Density.MaxCellSize; max > 0 && cellSize > max {
		cellSize = max
	}
	return cellSize
}
