// Package streaming defines the wire contracts shared by the livemap server
// and its websocket viewers.
package streaming

import (
	"encoding/json"
	"strings"
)

// Room names. Loading rooms are dynamic and carry an identifier suffix.
const (
	RoomMap           = "map"
	RoomLogs          = "logs"
	RoomStaff         = "staff"
	RoomLoadingPrefix = "loading:"
)

// Event type constants matching the streaming protocol.
const (
	TypeSnapshot      = "snapshot"
	TypePlayerUpdate  = "playerUpdate"
	TypePlayerJoin    = "playerJoin"
	TypePlayerLeave   = "playerLeave"
	TypeHeatmap       = "heatmap"
	TypeLogEntry      = "logEntry"
	TypeServerSummary = "serverSummary"
	TypeError         = "error"
)

// Client command verbs. A command is sent as "join:<room>" or "leave:<room>".
const (
	CmdJoin  = "join"
	CmdLeave = "leave"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is sent when a client command is rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ParseCommand splits an inbound "verb:room" command. Loading room names
// contain a colon themselves, so only the first separator is significant.
func ParseCommand(raw string) (verb, room string, ok bool) {
	verb, room, ok = strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || room == "" {
		return "", "", false
	}
	if verb != CmdJoin && verb != CmdLeave {
		return "", "", false
	}
	return verb, room, true
}

// ValidRoom reports whether the room name is one the server serves.
func ValidRoom(room string) bool {
	switch room {
	case RoomMap, RoomLogs, RoomStaff:
		return true
	}
	return strings.HasPrefix(room, RoomLoadingPrefix) &&
		len(room) > len(RoomLoadingPrefix)
}
