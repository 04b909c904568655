package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/positions"
	"github.com/velocityrp/livemap/internal/roster"
)

func newFixture(t *testing.T) (*positions.Store, *Reconciler, func(time.Duration)) {
	t.Helper()
	current := time.Unix(5000, 0)
	clock := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }

	store := positions.New(clock)
	return store, New(store, DefaultWindows()), advance
}

func pushed() []model.PlayerPosition {
	return []model.PlayerPosition{
		{ID: 1, Name: "Avery", X: 100, Y: 200, Z: 30, Heading: 90, Health: 100, Armor: 50, Job: "police"},
		{ID: 2, Name: "Banks", X: -300, Y: 45, Z: 12, Health: 70},
	}
}

func rosterFor(ids ...int) []model.RosterEntry {
	names := map[int]string{1: "Avery", 2: "Banks", 3: "Cole"}
	entries := make([]model.RosterEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.RosterEntry{ID: id, Name: names[id], Ping: 10 * id})
	}
	return entries
}

func TestReconcile_LiveJoin(t *testing.T) {
	store, r, _ := newFixture(t)
	store.Ingest(pushed())

	views, quality := r.Reconcile(rosterFor(1, 2, 3), nil)
	assert.Equal(t, model.QualityLive, quality)
	require.Len(t, views, 3)

	// Matched entries carry real coordinates.
	assert.True(t, views[0].HasPosition)
	assert.Equal(t, 100.0, views[0].X)
	assert.Equal(t, "police", views[0].Job)
	assert.Equal(t, 10, views[0].Ping, "ping comes from the roster")

	// Unmatched roster entry gets the sentinel.
	assert.False(t, views[2].HasPosition)
	assert.Zero(t, views[2].X)
	assert.Zero(t, views[2].Y)
}

func TestReconcile_RosterIsMembershipTruth(t *testing.T) {
	store, r, _ := newFixture(t)
	store.Ingest(pushed())

	// Player 2 pushed a position but is no longer in the roster.
	views, quality := r.Reconcile(rosterFor(1), nil)
	assert.Equal(t, model.QualityLive, quality)
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].ID)
}

func TestReconcile_StaleStoreIsBasic(t *testing.T) {
	store, r, advance := newFixture(t)
	store.Ingest(pushed())
	advance(30 * time.Second) // exactly the boundary: >= live window

	views, quality := r.Reconcile(rosterFor(1, 2), nil)
	assert.Equal(t, model.QualityBasic, quality)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.False(t, v.HasPosition)
	}
}

func TestReconcile_NoPushEverIsBasic(t *testing.T) {
	_, r, _ := newFixture(t)

	views, quality := r.Reconcile(rosterFor(1), nil)
	assert.Equal(t, model.QualityBasic, quality)
	assert.Len(t, views, 1)
}

func TestReconcile_RosterFailureServesCached(t *testing.T) {
	store, r, advance := newFixture(t)
	store.Ingest(pushed())
	advance(10 * time.Second)

	views, quality := r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityCached, quality)
	require.Len(t, views, 2)
	assert.True(t, views[0].HasPosition)
	assert.Equal(t, "Avery", views[0].Name)
}

func TestReconcile_RosterFailurePastExpiryIsOffline(t *testing.T) {
	store, r, advance := newFixture(t)
	store.Ingest(pushed())
	advance(60 * time.Second) // exactly the boundary: >= expiry

	views, quality := r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityOffline, quality)
	assert.Empty(t, views)
}

func TestReconcile_RosterFailureNoDataIsOffline(t *testing.T) {
	_, r, _ := newFixture(t)

	views, quality := r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityOffline, quality)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestReconcile_RosterFailureEmptyStoreIsOffline(t *testing.T) {
	store, r, _ := newFixture(t)
	store.Ingest(nil) // accepted, but zero players: nothing cached to serve

	views, quality := r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityOffline, quality)
	assert.Empty(t, views)
}

func TestReconcile_CachedThenOfflineScenario(t *testing.T) {
	store, r, advance := newFixture(t)

	five := []model.PlayerPosition{
		{ID: 1, X: 1, Y: 1}, {ID: 2, X: 2, Y: 2}, {ID: 3, X: 3, Y: 3},
		{ID: 4, X: 4, Y: 4}, {ID: 5, X: 5, Y: 5},
	}
	store.Ingest(five)
	advance(10 * time.Second)

	views, quality := r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityCached, quality)
	assert.Len(t, views, 5)

	advance(70 * time.Second)
	views, quality = r.Reconcile(nil, roster.ErrUnavailable)
	assert.Equal(t, model.QualityOffline, quality)
	assert.Empty(t, views)
}

func TestNew_ZeroWindowsFallBackToDefaults(t *testing.T) {
	store := positions.New(nil)
	r := New(store, Windows{})
	assert.Equal(t, DefaultWindows(), r.windows)
}
