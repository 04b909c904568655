// Package monitor periodically samples the service's internal health: the
// position store's age, websocket room sizes and dispatcher queue depths.
// Samples are logged and, when Influx is connected, exported as a
// service_health point.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/velocityrp/livemap/internal/dispatcher"
	"github.com/velocityrp/livemap/internal/history"
	"github.com/velocityrp/livemap/internal/influx"
	"github.com/velocityrp/livemap/internal/positions"
	"github.com/velocityrp/livemap/internal/realtime"
)

// DefaultInterval is the sampling cadence.
const DefaultInterval = 30 * time.Second

// Dependencies holds everything the monitor samples.
type Dependencies struct {
	Logger     *slog.Logger
	Store      *positions.Store
	Hub        *realtime.Hub
	Dispatcher *dispatcher.Dispatcher
	History    *history.Recorder
	Influx     *influx.Manager
	Interval   time.Duration
}

// Status is one health sample.
type Status struct {
	Time            time.Time      `json:"time"`
	StoreAgeSeconds float64        `json:"storeAgeSeconds"`
	StoredPlayers   int            `json:"storedPlayers"`
	HistorySamples  int            `json:"historySamples"`
	RoomClients     map[string]int `json:"roomClients"`
	QueueDepths     map[string]int `json:"queueDepths"`
}

// Service manages the status monitor goroutine.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample collects one health snapshot.
func (s *Service) Sample() Status {
	status := Status{
		Time:          time.Now(),
		StoredPlayers: s.deps.Store.Count(),
	}
	if age := s.deps.Store.Age(); age >= 0 {
		status.StoreAgeSeconds = age.Seconds()
	} else {
		status.StoreAgeSeconds = -1
	}
	if s.deps.History != nil {
		status.HistorySamples = s.deps.History.Len()
	}
	if s.deps.Hub != nil {
		status.RoomClients = s.deps.Hub.RoomCounts()
	}
	if s.deps.Dispatcher != nil {
		status.QueueDepths = s.deps.Dispatcher.QueueDepths()
	}
	return status
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				status := s.Sample()

				s.deps.Logger.Info("Service health",
					"storeAgeSeconds", status.StoreAgeSeconds,
					"storedPlayers", status.StoredPlayers,
					"historySamples", status.HistorySamples,
					"roomClients", status.RoomClients,
					"queueDepths", status.QueueDepths,
				)

				if s.deps.Influx != nil {
					totalQueued := 0
					for _, depth := range status.QueueDepths {
						totalQueued += depth
					}
					point := influx.PerformancePoint(
						status.StoreAgeSeconds, totalQueued, status.RoomClients, status.Time)
					if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketPerformance, point); err != nil {
						s.deps.Logger.Error("Error writing health point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
}
