package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityrp/livemap/internal/model"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/players.json", r.URL.Path)
		w.Write([]byte(`[{"id":1,"name":"Avery","ping":40},{"id":2,"name":"Banks","ping":60}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	entries, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.RosterEntry{
		{ID: 1, Name: "Avery", Ping: 40},
		{ID: 2, Name: "Banks", Ping: 60},
	}, entries)
}

func TestFetch_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately, so the dial fails

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_TimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "/players.json", "/info.json", 50*time.Millisecond)

	start := time.Now()
	_, err := c.Fetch(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, elapsed, time.Second, "caller must not block past the timeout bound")
}

func TestSummary_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/players.json":
			w.Write([]byte(`[{"id":1,"name":"Avery","ping":40},{"id":2,"name":"Banks","ping":80}]`))
		case "/info.json":
			w.Write([]byte(`{"hostname":"Velocity RP","maxPlayers":128,"uptime":93784}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	info, err := c.Summary(context.Background())
	require.NoError(t, err)

	assert.True(t, info.Online)
	assert.Equal(t, 2, info.PlayerCount)
	assert.Equal(t, 128, info.MaxPlayers)
	assert.Equal(t, "Velocity RP", info.ServerName)
	assert.Equal(t, 60, info.AvgPing)
	assert.Equal(t, "1d 2h 3m", info.UptimeLabel)
}

func TestSummary_InfoFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/players.json" {
			w.Write([]byte(`[{"id":1,"name":"Avery","ping":40}]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	info, err := c.Summary(context.Background())
	require.NoError(t, err, "a failed info call must not fail the summary")

	assert.True(t, info.Online)
	assert.Equal(t, 1, info.PlayerCount)
	assert.Equal(t, "Unknown", info.ServerName)
}

func TestSummary_RosterFailureIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "/players.json", "/info.json", time.Second)
	info, err := c.Summary(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, info.Online)
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{45 * time.Second, "0m"},
		{5 * time.Minute, "5m"},
		{3*time.Hour + 20*time.Minute, "3h 20m"},
		{26*time.Hour + 4*time.Minute, "1d 2h 4m"},
		{48 * time.Hour, "2d 0h 0m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatUptime(tc.in), "uptime %v", tc.in)
	}
}
