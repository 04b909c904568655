// Package model holds the domain types shared by the livemap aggregation
// pipeline. Types here are plain values; ownership and locking rules live
// with the components that hold them.
package model

import "time"

// ViewQuality classifies the provenance of a merged player view. It describes
// which upstream data the view was built from, not player state.
type ViewQuality string

const (
	// QualityLive means position data younger than the live-join window
	// was merged into a successful roster poll.
	QualityLive ViewQuality = "live"
	// QualityCached means the roster poll failed but position data younger
	// than the hard expiry was served instead.
	QualityCached ViewQuality = "cached"
	// QualityBasic means the roster poll succeeded but no position data was
	// fresh enough to join.
	QualityBasic ViewQuality = "basic"
	// QualityOffline means the roster poll failed and no cached position
	// data was young enough.
	QualityOffline ViewQuality = "offline"
	// QualityError marks an unexpected fault in the read/aggregate path.
	QualityError ViewQuality = "error"
)

// PlayerPosition is one entry of a position push from the game server.
type PlayerPosition struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
	Health  int     `json:"health"`
	Armor   int     `json:"armor"`
	Job     string  `json:"job,omitempty"`
	Ping    int     `json:"ping,omitempty"`
}

// RosterEntry is the minimal identity record from the basic roster poll.
// It carries no spatial data.
type RosterEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Ping int    `json:"ping"`
}

// MergedPlayerView joins a RosterEntry with the most recent PlayerPosition
// sharing its id. When no position exists the spatial fields hold the zero
// sentinel and HasPosition is false; consumers must branch on HasPosition,
// never on the coordinates themselves.
type MergedPlayerView struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Heading     float64 `json:"heading"`
	Health      int     `json:"health"`
	Armor       int     `json:"armor"`
	Job         string  `json:"job,omitempty"`
	Ping        int     `json:"ping"`
	HasPosition bool    `json:"hasPosition"`
}

// Sentinel reports whether the view carries no real spatial data.
func (v MergedPlayerView) Sentinel() bool {
	return !v.HasPosition
}

// CellKey identifies a square heatmap cell by its floored grid coordinates.
// A typed composite key avoids the string-concatenation edge cases that bite
// at cell boundaries with negative coordinates.
type CellKey struct {
	X int
	Y int
}

// HeatPoint is one cell of a density snapshot. Intensity is normalized to
// the busiest cell of the same snapshot, so it is always in (0, 1].
type HeatPoint struct {
	CellX     float64 `json:"cellX"`
	CellY     float64 `json:"cellY"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"`
}

// ServerInfo is the per-request summary derived from the roster and the
// auxiliary info call. It is never cached beyond its revalidation window.
type ServerInfo struct {
	Online      bool   `json:"online"`
	PlayerCount int    `json:"players"`
	MaxPlayers  int    `json:"maxPlayers"`
	ServerName  string `json:"serverName"`
	AvgPing     int    `json:"avgPing"`
	UptimeLabel string `json:"uptime"`
}

// OfflineServerInfo is the payload served when the upstream info call fails.
// The status badge must always render something, so this is data, not an
// error response.
func OfflineServerInfo() ServerInfo {
	return ServerInfo{Online: false, ServerName: "Unavailable", UptimeLabel: "offline"}
}

// PopulationSample is one point of the rolling population series.
type PopulationSample struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// LogEntry is a server log line pushed by the game server and fanned out to
// the logs room.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level,omitempty"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
}
