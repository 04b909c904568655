package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/velocityrp/livemap/internal/dispatcher"
	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/roster"
	"github.com/velocityrp/livemap/pkg/streaming"
)

// PositionsResponse is the payload of GET /positions. LastUpdate is epoch
// milliseconds of the newest accepted push, null when no push ever happened.
type PositionsResponse struct {
	Players    []model.MergedPlayerView `json:"players"`
	Count      int                      `json:"count"`
	Source     model.ViewQuality        `json:"source"`
	LastUpdate *int64                   `json:"lastUpdate"`
}

func emptyPositionsResponse(quality model.ViewQuality) PositionsResponse {
	return PositionsResponse{
		Players: []model.MergedPlayerView{},
		Source:  quality,
	}
}

// pushRequest is the privileged POST /positions body. Players is a pointer
// so a missing array is distinguishable from an empty one: empty means
// "zero players reporting", missing is malformed.
type pushRequest struct {
	Secret  string                  `json:"secret"`
	Players *[]model.PlayerPosition `json:"players"`
}

type pushResponse struct {
	Success  bool `json:"success"`
	Received int  `json:"received"`
}

func (s *Server) handlePositionsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.positionsCache.Get())
}

// computePositions polls the roster and reconciles it against the position
// store. Roster failures are absorbed into the quality tag here; this
// function never fails.
func (s *Server) computePositions() PositionsResponse {
	entries, err := s.deps.Roster.Fetch(context.Background())
	if err != nil {
		s.deps.Logger.Debug("Roster poll failed, reconciling fallback", "error", err)
	}

	s.rosterMu.Lock()
	s.lastRoster = entries
	s.lastRosterErr = err
	s.rosterPolled = true
	s.rosterMu.Unlock()

	return s.buildPositions(entries, err)
}

// lastRosterResult returns the most recent roster poll outcome without
// touching the upstream. Before the first poll it reports the roster as
// unavailable, which reconciles to cached or offline from the store alone.
func (s *Server) lastRosterResult() ([]model.RosterEntry, error) {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	if !s.rosterPolled {
		return nil, roster.ErrUnavailable
	}
	return s.lastRoster, s.lastRosterErr
}

func (s *Server) buildPositions(entries []model.RosterEntry, err error) PositionsResponse {
	views, quality := s.deps.Reconciler.Reconcile(entries, err)
	if views == nil {
		views = []model.MergedPlayerView{}
	}

	resp := PositionsResponse{
		Players: views,
		Count:   len(views),
		Source:  quality,
	}
	if at, ok := s.deps.Store.LastUpdate(); ok {
		ms := at.UnixMilli()
		resp.LastUpdate = &ms
	}
	return resp
}

func (s *Server) handlePositionsPost(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.deps.Game.PushSecret)) != 1 {
		s.deps.Logger.Warn("Position push rejected, secret mismatch", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	if req.Players == nil {
		writeError(w, http.StatusBadRequest, "missing players array")
		return
	}

	previous, _, _ := s.deps.Store.Read()
	received := s.deps.Store.Ingest(*req.Players)
	s.positionsCache.Invalidate()

	s.publishPushEvents(previous, *req.Players)

	writeJSON(w, http.StatusOK, pushResponse{Success: true, Received: received})
}

// publishPushEvents emits the map-room update and the staff-room join/leave
// diffs for one accepted push. The broadcast payload joins the just-ingested
// positions against the last roster poll rather than polling again, so a
// push never waits on the upstream; reads refresh the roster on their own
// revalidation cadence. Delivery is best effort; a full dispatcher queue
// degrades freshness for subscribers, never the stored snapshot.
func (s *Server) publishPushEvents(previous, current []model.PlayerPosition) {
	resp := s.buildPositions(s.lastRosterResult())

	s.dispatch(dispatcher.Event{
		Kind:    streaming.TypePlayerUpdate,
		Room:    streaming.RoomMap,
		Payload: resp,
	})
	s.dispatch(dispatcher.Event{
		Kind:    streaming.TypeHeatmap,
		Room:    streaming.RoomMap,
		Payload: s.computeHeatmap(resp.Players, s.deps.Density.CellSize),
	})

	prevIDs := make(map[int]model.PlayerPosition, len(previous))
	for _, p := range previous {
		prevIDs[p.ID] = p
	}
	currIDs := make(map[int]model.PlayerPosition, len(current))
	for _, p := range current {
		currIDs[p.ID] = p
	}

	for id, p := range currIDs {
		if _, ok := prevIDs[id]; !ok {
			s.dispatch(dispatcher.Event{
				Kind:    streaming.TypePlayerJoin,
				Room:    streaming.RoomStaff,
				Payload: p,
			})
		}
	}
	for id, p := range prevIDs {
		if _, ok := currIDs[id]; !ok {
			s.dispatch(dispatcher.Event{
				Kind:    streaming.TypePlayerLeave,
				Room:    streaming.RoomStaff,
				Payload: p,
			})
		}
	}
}

func (s *Server) dispatch(e dispatcher.Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Dispatch(e); err != nil {
		s.deps.Logger.Warn("Event dispatch failed", "kind", e.Kind, "error", err)
	}
}
