// Package positions owns the process-wide cache of the most recent position
// push. Latency here is critical: every viewer poll reads through this store.
package positions

import (
	"sync"
	"time"

	"github.com/velocityrp/livemap/internal/model"
)

// IngestListener is notified after every accepted push with the new player
// count. Notifications are best-effort and run outside the store lock.
type IngestListener func(count int, now time.Time)

// Store holds exactly one authoritative snapshot at any instant. A push
// replaces the whole list atomically; it never merges field-by-field with a
// prior push. The clock is constructor-injected so freshness logic is
// testable without sleeping.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	players   []model.PlayerPosition
	updatedAt time.Time
	hasData   bool

	listeners []IngestListener
}

// New creates an empty store using the given clock. A nil clock falls back
// to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// OnIngest registers a listener. Registration is not safe for use after the
// first Ingest; wire listeners during startup.
func (s *Store) OnIngest(fn IngestListener) {
	s.listeners = append(s.listeners, fn)
}

// Ingest replaces the stored snapshot and its timestamp unconditionally.
// An empty list is accepted and means "zero players currently reporting
// positions", which is distinct from never having ingested at all.
func (s *Store) Ingest(players []model.PlayerPosition) int {
	snapshot := make([]model.PlayerPosition, len(players))
	copy(snapshot, players)
	now := s.now()

	s.mu.Lock()
	s.players = snapshot
	s.updatedAt = now
	s.hasData = true
	s.mu.Unlock()

	for _, fn := range s.listeners {
		fn(len(snapshot), now)
	}
	return len(snapshot)
}

// Read returns a copy of the current snapshot, its age, and whether any
// push has ever been accepted. Callers own the returned slice.
func (s *Store) Read() (players []model.PlayerPosition, age time.Duration, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasData {
		return nil, 0, false
	}
	players = make([]model.PlayerPosition, len(s.players))
	copy(players, s.players)
	return players, s.now().Sub(s.updatedAt), true
}

// Age returns the time since the last accepted push, or a negative value
// when no push has occurred.
func (s *Store) Age() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasData {
		return -1
	}
	return s.now().Sub(s.updatedAt)
}

// LastUpdate returns the timestamp of the last accepted push and whether one
// has occurred.
func (s *Store) LastUpdate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, s.hasData
}

// Count returns the player count of the current snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
