// Package roster polls the external game server's basic endpoints. Each call
// is a single attempt with a hard timeout; consumers poll on their own
// schedule, so no retries happen here. Transport failures come back as
// ErrUnavailable so the reconciler can apply its fallback policy
// deterministically.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/velocityrp/livemap/internal/model"
)

// ErrUnavailable wraps every transport-level failure of the roster or info
// call. Callers classify it; they never surface it to viewers.
var ErrUnavailable = errors.New("game server unavailable")

// DefaultTimeout bounds a single roster or info call.
const DefaultTimeout = 5 * time.Second

// Client fetches the roster and the auxiliary server info document.
type Client struct {
	baseURL    string
	rosterPath string
	infoPath   string
	httpClient *http.Client
}

// New creates a roster client. A zero timeout falls back to DefaultTimeout.
func New(baseURL, rosterPath, infoPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		rosterPath: rosterPath,
		infoPath:   infoPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// infoDocument is the upstream info payload shape.
type infoDocument struct {
	Hostname   string `json:"hostname"`
	MaxPlayers int    `json:"maxPlayers"`
	Uptime     int64  `json:"uptime"` // seconds
}

// Fetch performs one roster poll. Every failure mode (dial, timeout, bad
// status, bad body) is reported as ErrUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]model.RosterEntry, error) {
	body, err := c.get(ctx, c.rosterPath)
	if err != nil {
		return nil, err
	}

	var entries []model.RosterEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding roster: %v", ErrUnavailable, err)
	}
	return entries, nil
}

// Summary calls the roster and info endpoints and derives a ServerInfo. The
// roster call is required; a failed info call degrades the name and capacity
// fields rather than failing the summary.
func (c *Client) Summary(ctx context.Context) (model.ServerInfo, error) {
	entries, err := c.Fetch(ctx)
	if err != nil {
		return model.OfflineServerInfo(), err
	}

	info := model.ServerInfo{
		Online:      true,
		PlayerCount: len(entries),
		AvgPing:     averagePing(entries),
	}

	body, err := c.get(ctx, c.infoPath)
	if err != nil {
		info.ServerName = "Unknown"
		info.UptimeLabel = "unknown"
		return info, nil
	}

	var doc infoDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		info.ServerName = "Unknown"
		info.UptimeLabel = "unknown"
		return info, nil
	}

	info.ServerName = doc.Hostname
	info.MaxPlayers = doc.MaxPlayers
	info.UptimeLabel = FormatUptime(time.Duration(doc.Uptime) * time.Second)
	return info, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return body, nil
}

func averagePing(entries []model.RosterEntry) int {
	if len(entries) == 0 {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += e.Ping
	}
	return total / len(entries)
}

// FormatUptime renders a duration as a compact "2d 4h 12m" label.
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	fmt.Fprintf(&b, "%dm", minutes)
	return b.String()
}
