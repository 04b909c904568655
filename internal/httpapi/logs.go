package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/velocityrp/livemap/internal/dispatcher"
	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/pkg/streaming"
)

// HistoryResponse is the payload of GET /history.
type HistoryResponse struct {
	Samples []model.PopulationSample `json:"samples"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	samples := s.deps.History.Read()
	if samples == nil {
		samples = []model.PopulationSample{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Samples: samples})
}

// logsPushRequest is the privileged POST /logs body.
type logsPushRequest struct {
	Secret  string            `json:"secret"`
	Entries *[]model.LogEntry `json:"entries"`
}

type logsPushResponse struct {
	Success  bool `json:"success"`
	Received int  `json:"received"`
}

func (s *Server) handleLogsPost(w http.ResponseWriter, r *http.Request) {
	var req logsPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.deps.Game.PushSecret)) != 1 {
		s.deps.Logger.Warn("Log push rejected, secret mismatch", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	if req.Entries == nil {
		writeError(w, http.StatusBadRequest, "missing entries array")
		return
	}

	now := s.deps.Now()
	for _, entry := range *req.Entries {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		}
		if s.deps.LogBacklog != nil {
			s.deps.LogBacklog.Push(entry)
		}
		s.dispatch(dispatcher.Event{
			Kind:    streaming.TypeLogEntry,
			Room:    streaming.RoomLogs,
			Payload: entry,
		})
	}

	writeJSON(w, http.StatusOK, logsPushResponse{Success: true, Received: len(*req.Entries)})
}
