// Package httpapi exposes the aggregation pipeline over HTTP: the viewer
// read endpoints, the privileged game-server push endpoints, and the
// websocket upgrade. Upstream failures surface as ViewQuality values in
// well-formed payloads, never as 5xx responses.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/density"
	"github.com/velocityrp/livemap/internal/dispatcher"
	"github.com/velocityrp/livemap/internal/geo"
	"github.com/velocityrp/livemap/internal/history"
	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/positions"
	"github.com/velocityrp/livemap/internal/queue"
	"github.com/velocityrp/livemap/internal/realtime"
	"github.com/velocityrp/livemap/internal/reconcile"
)

// RosterSource is the upstream the read endpoints poll. Implemented by
// roster.Client.
type RosterSource interface {
	Fetch(ctx context.Context) ([]model.RosterEntry, error)
	Summary(ctx context.Context) (model.ServerInfo, error)
}

// Events receives domain events emitted by the push endpoints. Implemented
// by dispatcher.Dispatcher; handlers fan the events out to websocket rooms.
type Events interface {
	Dispatch(e dispatcher.Event) error
}

// Deps carries everything the server composes.
type Deps struct {
	Store      *positions.Store
	Roster     RosterSource
	Reconciler *reconcile.Reconciler
	History    *history.Recorder
	Hub        *realtime.Hub
	Events     Events
	Logger     *slog.Logger

	Game    config.GameConfig
	Cache   config.CacheConfig
	Density config.DensityConfig
	Geo     config.GeoConfig

	LogBacklog *queue.Ring[model.LogEntry]

	// Now is the clock, defaulting to time.Now. Injected by tests.
	Now func() time.Time
}

// Server holds the handlers and their revalidation caches.
type Server struct {
	deps       Deps
	projection geo.Projection

	positionsCache *revalidated[PositionsResponse]
	summaryCache   *revalidated[model.ServerInfo]

	// last roster result, reused by the push path so an accepted push
	// never waits on an upstream poll
	rosterMu      sync.Mutex
	lastRoster    []model.RosterEntry
	lastRosterErr error
	rosterPolled  bool
}

// NewServer wires the handlers and their caches.
func NewServer(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		deps:       deps,
		projection: geo.Projection{OriginX: deps.Geo.OriginX, OriginY: deps.Geo.OriginY},
	}
	s.positionsCache = newRevalidated(deps.Cache.MapRevalidate, deps.Now, s.computePositions)
	s.summaryCache = newRevalidated(deps.Cache.SummaryRevalidate, deps.Now, s.computeSummary)
	return s
}

// CurrentPositions returns the positions payload, recomputing it when the
// revalidation window has lapsed. Used for websocket join snapshots.
func (s *Server) CurrentPositions() PositionsResponse {
	return s.positionsCache.Get()
}

// CurrentSummary returns the server summary payload, recomputing it when
// the revalidation window has lapsed.
func (s *Server) CurrentSummary() model.ServerInfo {
	return s.summaryCache.Get()
}

// Routes returns the service's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /positions", s.recovered(s.handlePositionsGet, emptyPositionsResponse(model.QualityError)))
	mux.HandleFunc("POST /positions", s.handlePositionsPost)
	mux.HandleFunc("GET /server-summary", s.recovered(s.handleServerSummary, model.OfflineServerInfo()))
	mux.HandleFunc("GET /heatmap", s.recovered(s.handleHeatmap, emptyHeatmapResponse(density.DefaultCellSize)))
	mux.HandleFunc("GET /history", s.recovered(s.handleHistory, HistoryResponse{Samples: []model.PopulationSample{}}))
	mux.HandleFunc("POST /logs", s.handleLogsPost)
	mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	mux.HandleFunc("GET /ws", s.deps.Hub.ServeWS)
	return mux
}

// recovered wraps a read handler so an unexpected fault degrades that one
// request to a well-formed fallback payload instead of crashing or
// returning a 5xx.
func (s *Server) recovered(h http.HandlerFunc, fallback any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.deps.Logger.Error("Recovered from handler panic",
					"path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusOK, fallback)
			}
		}()
		h(w, r)
	}
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
