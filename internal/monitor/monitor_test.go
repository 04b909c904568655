package monitor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityrp/livemap/internal/history"
	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/positions"
)

func TestSample_NoDataStore(t *testing.T) {
	store := positions.New(time.Now)
	svc := NewService(Dependencies{
		Logger: slog.Default(),
		Store:  store,
	})

	status := svc.Sample()
	assert.Equal(t, -1.0, status.StoreAgeSeconds)
	assert.Equal(t, 0, status.StoredPlayers)
}

func TestSample_CountsStoreAndHistory(t *testing.T) {
	store := positions.New(time.Now)
	rec := history.New(10)

	store.Ingest([]model.PlayerPosition{{ID: 1}, {ID: 2}})
	rec.Record(2, time.Now())

	svc := NewService(Dependencies{
		Logger:  slog.Default(),
		Store:   store,
		History: rec,
	})

	status := svc.Sample()
	assert.Equal(t, 2, status.StoredPlayers)
	assert.Equal(t, 1, status.HistorySamples)
	assert.GreaterOrEqual(t, status.StoreAgeSeconds, 0.0)
}

func TestStartStop(t *testing.T) {
	svc := NewService(Dependencies{
		Logger:   slog.Default(),
		Store:    positions.New(time.Now),
		Interval: 10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	// Start is idempotent while running
	require.NoError(t, svc.Start())

	svc.Stop()
	assert.False(t, svc.IsRunning())

	// a second Stop must not close the stop channel again
	svc.Stop()
	assert.False(t, svc.IsRunning())
}

func TestStop_BeforeStartIsNoOp(t *testing.T) {
	svc := NewService(Dependencies{
		Logger: slog.Default(),
		Store:  positions.New(time.Now),
	})

	svc.Stop()
	assert.False(t, svc.IsRunning())
}
