package httpapi

import (
	"context"
	"net/http"

	"github.com/velocityrp/livemap/internal/model"
)

func (s *Server) handleServerSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summaryCache.Get())
}

// computeSummary polls the roster and info endpoints. A failed poll yields
// the offline-shaped payload; the status badge always renders something.
func (s *Server) computeSummary() model.ServerInfo {
	info, err := s.deps.Roster.Summary(context.Background())
	if err != nil {
		s.deps.Logger.Debug("Server summary poll failed", "error", err)
	}
	return info
}
