// Package reconcile merges the roster poll with the position store and
// classifies the result. The roster is the membership source of truth;
// position data only enriches it. A player can be connected before their
// client pushes positions, and position pushes can lag independently of
// connectivity, so the quality tag reflects which data is trustworthy, not
// just online/offline.
package reconcile

import (
	"time"

	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/positions"
)

// Windows holds the freshness policy. The values are provisional defaults,
// not derived requirements; they arrive from config.
type Windows struct {
	// Live is the maximum position age joined into a successful roster poll.
	Live time.Duration
	// Expiry is the hard cutoff for serving cached positions when the
	// roster poll itself failed.
	Expiry time.Duration
}

// DefaultWindows returns the documented default policy.
func DefaultWindows() Windows {
	return Windows{Live: 30 * time.Second, Expiry: 60 * time.Second}
}

// Reconciler joins roster entries to stored positions by id.
type Reconciler struct {
	store   *positions.Store
	windows Windows
}

// New creates a reconciler over the given store.
func New(store *positions.Store, windows Windows) *Reconciler {
	if windows.Live <= 0 || windows.Expiry <= 0 {
		windows = DefaultWindows()
	}
	return &Reconciler{store: store, windows: windows}
}

// Reconcile classifies the merged view:
//
//   - roster failed, store younger than Expiry and ingested at least once:
//     last known positions tagged cached
//   - roster failed otherwise: empty view tagged offline
//   - roster ok, store younger than Live: left join tagged live
//   - roster ok, store stale or empty: roster with sentinel positions,
//     tagged basic
//
// rosterErr carries the poll outcome; entries are ignored when it is non-nil.
func (r *Reconciler) Reconcile(entries []model.RosterEntry, rosterErr error) ([]model.MergedPlayerView, model.ViewQuality) {
	stored, age, hasData := r.store.Read()

	if rosterErr != nil {
		if hasData && age < r.windows.Expiry && len(stored) > 0 {
			return viewsFromPositions(stored), model.QualityCached
		}
		return []model.MergedPlayerView{}, model.QualityOffline
	}

	if hasData && age < r.windows.Live {
		return leftJoin(entries, stored), model.QualityLive
	}

	return viewsFromRoster(entries), model.QualityBasic
}

// leftJoin enriches each roster entry with its stored position, if any.
// Unmatched roster entries keep the zero sentinel.
func leftJoin(entries []model.RosterEntry, stored []model.PlayerPosition) []model.MergedPlayerView {
	byID := make(map[int]model.PlayerPosition, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}

	views := make([]model.MergedPlayerView, 0, len(entries))
	for _, e := range entries {
		v := model.MergedPlayerView{ID: e.ID, Name: e.Name, Ping: e.Ping}
		if p, ok := byID[e.ID]; ok {
			v.X, v.Y, v.Z = p.X, p.Y, p.Z
			v.Heading = p.Heading
			v.Health = p.Health
			v.Armor = p.Armor
			v.Job = p.Job
			v.HasPosition = true
		}
		views = append(views, v)
	}
	return views
}

// viewsFromPositions serves the last known push verbatim, used for the
// cached fallback when the roster is unreachable.
func viewsFromPositions(stored []model.PlayerPosition) []model.MergedPlayerView {
	views := make([]model.MergedPlayerView, 0, len(stored))
	for _, p := range stored {
		views = append(views, model.MergedPlayerView{
			ID:          p.ID,
			Name:        p.Name,
			X:           p.X,
			Y:           p.Y,
			Z:           p.Z,
			Heading:     p.Heading,
			Health:      p.Health,
			Armor:       p.Armor,
			Job:         p.Job,
			Ping:        p.Ping,
			HasPosition: true,
		})
	}
	return views
}

func viewsFromRoster(entries []model.RosterEntry) []model.MergedPlayerView {
	views := make([]model.MergedPlayerView, 0, len(entries))
	for _, e := range entries {
		views = append(views, model.MergedPlayerView{ID: e.ID, Name: e.Name, Ping: e.Ping})
	}
	return views
}
