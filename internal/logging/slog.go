package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Options configures the logging setup. Console output to stdout is always
// on; everything else is optional.
type Options struct {
	Level string
	// File receives a text copy of every record when non-nil.
	File io.Writer
	// GELF receives a JSON copy of every record when non-nil, typically a
	// gelf.Writer pointed at Graylog.
	GELF io.Writer
	// Provider enables the OTel log bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// Context supplies dynamic per-record attributes.
	Context ContextProvider
}

// SlogManager owns the process logger and its sinks.
type SlogManager struct {
	logger *slog.Logger

	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system.
func (m *SlogManager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)
	m.logProvider = opts.Provider

	// RFC3339 timestamps across all text sinks.
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))

	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	}

	if opts.GELF != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.GELF, handlerOpts))
	}

	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler("livemapd",
			otelslog.WithLoggerProvider(opts.Provider)))
	}

	var root slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		root = NewContextHandler(root, opts.Context)
	}

	m.logger = slog.New(root)
	m.logger.Info("Logging initialized", "level", opts.Level)
}

// Logger returns the configured slog.Logger, or the default logger before
// Setup has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
