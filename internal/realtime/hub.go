// Package realtime fans live events out to websocket viewers. Viewers join
// named rooms and receive the room's current snapshot first, then every
// event broadcast to that room, in broadcast order. Delivery is best
// effort: a viewer that cannot keep up is dropped from all rooms rather
// than buffered without bound.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/pkg/streaming"
)

// SnapshotFunc returns the full current state for a room, encoded as the
// payload of the snapshot event a joining viewer receives. ok is false when
// the room has no snapshot, in which case the joiner starts from deltas.
type SnapshotFunc func(room string) (payload json.RawMessage, ok bool)

// Hub tracks room membership and broadcasts events to members.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}

	snapshot SnapshotFunc
	cfg      config.RealtimeConfig
	logger   *slog.Logger
	metrics  *hubMetrics
}

// NewHub creates a hub. snapshot may be nil when no room has join
// snapshots, such as in tests.
func NewHub(cfg config.RealtimeConfig, logger *slog.Logger, snapshot SnapshotFunc) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger,
		metrics:  newHubMetrics(),
	}
}

// Join adds the client to a room and enqueues the room's current snapshot
// as the client's next message. Membership and snapshot delivery happen
// under one lock so no broadcast can slip between them.
func (h *Hub) Join(c *Client, room string) error {
	if !streaming.ValidRoom(room) {
		return fmt.Errorf("unknown room: %s", room)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	if h.snapshot != nil {
		if payload, ok := h.snapshot(room); ok {
			data, err := json.Marshal(streaming.Envelope{
				Type:    streaming.TypeSnapshot,
				Room:    room,
				Payload: payload,
			})
			if err != nil {
				return fmt.Errorf("marshal snapshot for room %s: %w", room, err)
			}
			if !c.enqueue(data) {
				h.dropLocked(c)
				return fmt.Errorf("client cannot receive snapshot for room %s", room)
			}
		}
	}

	h.logger.Debug("Client joined room", "room", room, "members", len(members))
	return nil
}

// Leave removes the client from one room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Remove removes the client from every room. Called on disconnect.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// Broadcast marshals payload into an Envelope and enqueues it to every
// current member of the room. Members whose send buffer is full are
// dropped from all rooms. Enqueueing happens under the hub lock, so all
// members observe broadcasts to one room in the same relative order.
func (h *Hub) Broadcast(room, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	data, err := json.Marshal(streaming.Envelope{
		Type:    eventType,
		Room:    room,
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	if len(members) == 0 {
		return nil
	}

	var slow []*Client
	for c := range members {
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.logger.Warn("Dropping slow websocket client", "room", room)
		h.dropLocked(c)
		h.metrics.clientDropped()
		c.closeAsync()
	}

	h.metrics.broadcast(room)
	return nil
}

// RoomCounts returns the current member count per room.
func (h *Hub) RoomCounts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		counts[room] = len(members)
	}
	return counts
}

// CloseAll disconnects every client. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			clients[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.closeAsync()
	}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) dropLocked(c *Client) {
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			h.leaveLocked(c, room)
		}
	}
}
