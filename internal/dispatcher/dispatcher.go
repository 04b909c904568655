// Package dispatcher routes domain events from the ingest path to their
// consumers (room broadcasts, history, metrics export). High-volume event
// kinds run on buffered queues so a slow consumer never blocks an inbound
// push.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one domain occurrence flowing through the pipeline.
type Event struct {
	Kind      string
	Room      string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc consumes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of
// dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher fans events out to the handlers registered for their kind.
// Multiple handlers per kind run in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	buffers  map[string][]chan Event
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// New creates a Dispatcher using the global OTel meter for metrics (no-op
// when OTel is not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		buffers:  make(map[string][]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"livemap.dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for kind, bufs := range d.buffers {
				queued := 0
				for _, buf := range bufs {
					queued += len(buf)
				}
				o.ObserveInt64(d.queueSize, int64(queued),
					metric.WithAttributes(attribute.String("kind", kind)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"livemap.dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"livemap.dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event kind. Registration happens
// during startup wiring; it is not safe concurrently with Dispatch.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(kind, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(kind, handler)
	}

	d.handlers[kind] = append(d.handlers[kind], handler)
}

// Dispatch routes an event to every handler registered for its kind. The
// first handler error is returned; remaining handlers still run, because a
// failed consumer must not starve the others.
func (d *Dispatcher) Dispatch(e Event) error {
	hs, ok := d.handlers[e.Kind]
	if !ok {
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var firstErr error
	for _, h := range hs {
		if err := h(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// QueueDepths returns the current number of queued events per buffered
// kind, summed across that kind's handler queues. Used by the status
// monitor.
func (d *Dispatcher) QueueDepths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	depths := make(map[string]int, len(d.buffers))
	for kind, bufs := range d.buffers {
		queued := 0
		for _, buf := range bufs {
			queued += len(buf)
		}
		depths[kind] = queued
	}
	return depths
}

// HasHandler reports whether any handler is registered for the kind.
func (d *Dispatcher) HasHandler(kind string) bool {
	_, ok := d.handlers[kind]
	return ok
}

func (d *Dispatcher) withBuffer(kind string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[kind] = append(d.buffers[kind], buffer)
	d.mu.Unlock()

	kindAttr := attribute.String("kind", kind)

	go func() {
		for e := range buffer {
			if err := h(e); err != nil && d.logger != nil {
				d.logger.Error("buffered handler failed", "kind", kind, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
		}
	}()

	if blocking {
		return func(e Event) error {
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
			return fmt.Errorf("queue full: %s", kind)
		}
	}
}

func (d *Dispatcher) withLogging(kind string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "kind", kind, "room", e.Room)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "kind", kind, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "kind", kind, "duration", time.Since(start))
		}

		return err
	}
}
