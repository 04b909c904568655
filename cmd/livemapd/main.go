// Command livemapd aggregates live world state from a game server and
// serves it to the community site: merged position views, heat maps,
// population history and websocket rooms.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/velocityrp/livemap/internal/config"
	"github.com/velocityrp/livemap/internal/density"
	"github.com/velocityrp/livemap/internal/dispatcher"
	"github.com/velocityrp/livemap/internal/history"
	"github.com/velocityrp/livemap/internal/httpapi"
	"github.com/velocityrp/livemap/internal/influx"
	"github.com/velocityrp/livemap/internal/logging"
	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/monitor"
	"github.com/velocityrp/livemap/internal/otel"
	"github.com/velocityrp/livemap/internal/positions"
	"github.com/velocityrp/livemap/internal/queue"
	"github.com/velocityrp/livemap/internal/realtime"
	"github.com/velocityrp/livemap/internal/reconcile"
	"github.com/velocityrp/livemap/internal/roster"
	"github.com/velocityrp/livemap/internal/storage"
	"github.com/velocityrp/livemap/pkg/streaming"
)

const serviceName = "livemapd"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory holding livemapd.cfg.json")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		return err
	}

	sessionStart := time.Now()
	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.Mkdir(logsDir, 0755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
	}

	logFile, err := os.Create(logging.LogFilePath(logsDir, serviceName, sessionStart))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	// OTel, optional
	otelCfg := config.GetOTelConfig()
	var otelLogWriter io.WriteCloser
	if otelCfg.Enabled {
		otelLogWriter, err = os.Create(logging.LogFilePath(logsDir, serviceName+".otel", sessionStart))
		if err != nil {
			return fmt.Errorf("creating otel log file: %w", err)
		}
		defer otelLogWriter.Close()
	}
	otelProvider, err := otel.New(otel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    otelLogWriter,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing OTel: %w", err)
	}

	// GELF, optional
	var gelfWriter io.Writer
	if graylogCfg := config.GetGraylogConfig(); graylogCfg.Enabled {
		gelfWriter, err = logging.NewGelfWriter(graylogCfg.Address)
		if err != nil {
			fmt.Fprintf(os.Stderr, "GELF writer unavailable, continuing without: %v\n", err)
			gelfWriter = nil
		}
	}

	store := positions.New(time.Now)
	var monitorService *monitor.Service

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		Level:    config.GetString("logLevel"),
		File:     logFile,
		GELF:     gelfWriter,
		Provider: otelProvider.LoggerProvider(),
		Context: func() []slog.Attr {
			attrs := []slog.Attr{slog.Int("storedPlayers", store.Count())}
			if monitorService != nil {
				attrs = append(attrs, slog.Bool("monitorRunning", monitorService.IsRunning()))
			}
			return attrs
		},
	})
	logger := slogManager.Logger()
	logger.Info("Starting livemapd", "logsDir", logsDir)

	// Influx, optional; falls back to a gzip line-protocol spool
	var influxManager *influx.Manager
	if config.GetInfluxConfig().Enabled {
		zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
		influxManager = influx.NewManager(zl, logging.LogFilePath(logsDir, serviceName+".influx", sessionStart)+".gz")
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable", "error", err)
			influxManager = nil
		}
	}

	// persistence backend
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing %s storage: %w", storageCfg.Type, err)
	}
	defer backend.Close()

	// aggregation pipeline
	gameCfg := config.GetGameConfig()
	cacheCfg := config.GetCacheConfig()
	densityCfg := config.GetDensityConfig()
	realtimeCfg := config.GetRealtimeConfig()

	rosterClient := roster.New(gameCfg.BaseURL(), gameCfg.RosterPath, gameCfg.InfoPath, gameCfg.RosterTimeout)
	reconciler := reconcile.New(store, reconcile.Windows{
		Live:   cacheCfg.LiveWindow,
		Expiry: cacheCfg.Expiry,
	})

	historyRec := history.New(config.GetHistoryConfig().Capacity)
	if samples, err := backend.RecentPopulation(config.GetHistoryConfig().Capacity); err != nil {
		logger.Warn("Could not re-seed population history", "error", err)
	} else {
		for _, s := range samples {
			historyRec.Record(s.Count, s.Timestamp)
		}
		if len(samples) > 0 {
			logger.Info("Re-seeded population history", "samples", len(samples))
		}
	}

	store.OnIngest(func(count int, now time.Time) {
		historyRec.Record(count, now)
		if influxManager != nil {
			if err := influxManager.WritePoint(context.Background(), influx.BucketIngest, influx.IngestPoint(count, now)); err != nil {
				logger.Error("Error writing ingest point", "error", err)
			}
		}
	})

	logBacklog := queue.NewRing[model.LogEntry](realtimeCfg.LogBacklog)

	// hub and API reference each other through the join-snapshot closure;
	// apiServer is assigned before the listener accepts traffic
	var apiServer *httpapi.Server
	hub := realtime.NewHub(realtimeCfg, logger, func(room string) (json.RawMessage, bool) {
		if apiServer == nil {
			return nil, false
		}
		switch room {
		case streaming.RoomMap, streaming.RoomStaff:
			raw, err := json.Marshal(apiServer.CurrentPositions())
			return raw, err == nil
		case streaming.RoomLogs:
			raw, err := json.Marshal(logBacklog.Snapshot())
			return raw, err == nil
		}
		if strings.HasPrefix(room, streaming.RoomLoadingPrefix) {
			raw, err := json.Marshal(apiServer.CurrentSummary())
			return raw, err == nil
		}
		return nil, false
	})

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing dispatcher: %w", err)
	}
	registerEventHandlers(disp, hub, backend, influxManager, realtimeCfg.EventBuffer, logger)

	apiServer = httpapi.NewServer(httpapi.Deps{
		Store:      store,
		Roster:     rosterClient,
		Reconciler: reconciler,
		History:    historyRec,
		Hub:        hub,
		Events:     disp,
		Logger:     logger,
		Game:       gameCfg,
		Cache:      cacheCfg,
		Density:    densityCfg,
		Geo:        config.GetGeoConfig(),
		LogBacklog: logBacklog,
	})

	monitorService = monitor.NewService(monitor.Dependencies{
		Logger:     logger,
		Store:      store,
		Hub:        hub,
		Dispatcher: disp,
		History:    historyRec,
		Influx:     influxManager,
	})
	if err := monitorService.Start(); err != nil {
		return err
	}
	defer monitorService.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go summaryLoop(ctx, rosterClient, disp, cacheCfg.SummaryRevalidate, logger)
	go heatSnapshotLoop(ctx, store, backend, storageCfg.SnapshotInterval, densityCfg.CellSize, logger)

	httpServer := &http.Server{
		Addr:    config.GetServerConfig().ListenAddr,
		Handler: apiServer.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	hub.CloseAll()

	if err := slogManager.Flush(shutdownCtx); err != nil {
		logger.Error("Log flush error", "error", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("OTel shutdown error", "error", err)
	}

	return nil
}

// registerEventHandlers wires dispatcher kinds to their consumers. Room
// broadcasts run buffered so a slow fan-out never blocks an inbound push.
func registerEventHandlers(disp *dispatcher.Dispatcher, hub *realtime.Hub, backend storage.Backend, influxManager *influx.Manager, eventBuffer int, logger *slog.Logger) {
	broadcast := func(room string) dispatcher.HandlerFunc {
		return func(e dispatcher.Event) error {
			return hub.Broadcast(room, e.Kind, e.Payload)
		}
	}

	disp.Register(streaming.TypePlayerUpdate, broadcast(streaming.RoomMap), dispatcher.Buffered(eventBuffer))
	disp.Register(streaming.TypeHeatmap, broadcast(streaming.RoomMap), dispatcher.Buffered(eventBuffer))
	disp.Register(streaming.TypePlayerJoin, broadcast(streaming.RoomStaff), dispatcher.Buffered(eventBuffer))
	disp.Register(streaming.TypePlayerLeave, broadcast(streaming.RoomStaff), dispatcher.Buffered(eventBuffer))
	disp.Register(streaming.TypeLogEntry, broadcast(streaming.RoomLogs), dispatcher.Buffered(eventBuffer))
	disp.Register(streaming.TypeServerSummary, broadcast(streaming.RoomMap), dispatcher.Buffered(eventBuffer))

	// loading rooms track the summary too, one room per client identifier
	disp.Register(streaming.TypeServerSummary, func(e dispatcher.Event) error {
		for room := range hub.RoomCounts() {
			if !strings.HasPrefix(room, streaming.RoomLoadingPrefix) {
				continue
			}
			if err := hub.Broadcast(room, e.Kind, e.Payload); err != nil {
				return err
			}
		}
		return nil
	}, dispatcher.Buffered(eventBuffer))

	// every map update also persists a population sample under the quality
	// it was served with
	disp.Register(streaming.TypePlayerUpdate, func(e dispatcher.Event) error {
		resp, ok := e.Payload.(httpapi.PositionsResponse)
		if !ok {
			return nil
		}
		sample := model.PopulationSample{Timestamp: e.Timestamp, Count: resp.Count}
		if err := backend.RecordPopulationSample(sample, resp.Source); err != nil {
			return err
		}
		if influxManager != nil {
			if err := influxManager.WritePoint(context.Background(), influx.BucketPopulation, influx.PopulationPoint(sample, resp.Source)); err != nil {
				logger.Error("Error writing population point", "error", err)
			}
		}
		return nil
	}, dispatcher.Buffered(eventBuffer))
}

// summaryLoop periodically polls the server summary and broadcasts it to
// the map room for the status badge.
func summaryLoop(ctx context.Context, client *roster.Client, disp *dispatcher.Dispatcher, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := client.Summary(ctx)
			if err != nil {
				logger.Debug("Summary poll failed, broadcasting offline payload", "error", err)
			}
			if err := disp.Dispatch(dispatcher.Event{
				Kind:    streaming.TypeServerSummary,
				Room:    streaming.RoomMap,
				Payload: info,
			}); err != nil {
				logger.Debug("Summary dispatch failed", "error", err)
			}
		}
	}
}

// heatSnapshotLoop periodically persists an aggregated heat map so density
// trends survive restarts.
func heatSnapshotLoop(ctx context.Context, store *positions.Store, backend storage.Backend, interval time.Duration, cellSize float64, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stored, _, ok := store.Read()
			if !ok {
				continue
			}
			views := make([]model.MergedPlayerView, len(stored))
			for i, p := range stored {
				views[i] = model.MergedPlayerView{
					ID: p.ID, Name: p.Name,
					X: p.X, Y: p.Y, Z: p.Z,
					HasPosition: true,
				}
			}
			points := density.Aggregate(views, cellSize)
			if err := backend.RecordHeatSnapshot(time.Now(), cellSize, points); err != nil {
				logger.Error("Error persisting heat snapshot", "error", err)
			}
		}
	}
}
