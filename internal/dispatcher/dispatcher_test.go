package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("playerUpdate", func(e Event) error {
		got = e
		return nil
	})

	err := d.Dispatch(Event{Kind: "playerUpdate", Room: "map", Payload: 3})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Room != "map" || got.Payload != 3 {
		t.Errorf("handler saw wrong event: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("dispatch should stamp events that carry no timestamp")
	}
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(Event{Kind: "nope"})

	if err == nil {
		t.Error("expected error for unknown event kind")
	}
}

func TestDispatcher_MultipleHandlersAllRun(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls atomic.Int32
	d.Register("logEntry", func(Event) error {
		calls.Add(1)
		return fmt.Errorf("first handler failed")
	})
	d.Register("logEntry", func(Event) error {
		calls.Add(1)
		return nil
	})

	err := d.Dispatch(Event{Kind: "logEntry"})

	if err == nil {
		t.Error("expected first handler's error to propagate")
	}
	if calls.Load() != 2 {
		t.Errorf("expected both handlers to run, got %d calls", calls.Load())
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("playerUpdate", func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(Event{Kind: "playerUpdate"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so the queue fills up
	block := make(chan struct{})
	d.Register("heatmap", func(e Event) error {
		<-block
		return nil
	}, Buffered(2))

	d.Dispatch(Event{Kind: "heatmap"}) // being processed
	d.Dispatch(Event{Kind: "heatmap"}) // queued
	d.Dispatch(Event{Kind: "heatmap"}) // queued

	// This one should be dropped
	err := d.Dispatch(Event{Kind: "heatmap"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_QueueDepthsSumPerKindBuffers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 4)
	handler := func(e Event) error {
		started <- struct{}{}
		<-block
		return nil
	}

	// two buffered consumers for the same kind, each with its own queue
	d.Register("playerUpdate", handler, Buffered(1))
	d.Register("playerUpdate", handler, Buffered(1))

	// first event occupies both consumers
	if err := d.Dispatch(Event{Kind: "playerUpdate"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started
	<-started

	// second event sits queued in both buffers
	if err := d.Dispatch(Event{Kind: "playerUpdate"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := d.QueueDepths()["playerUpdate"]; got != 2 {
		t.Errorf("expected depth 2 across both queues, got %d", got)
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("snapshot", func(e Event) error {
		<-block
		return nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Kind: "snapshot"}) // being processed
	d.Dispatch(Event{Kind: "snapshot"}) // fills the queue

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Kind: "snapshot"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("playerJoin", func(e Event) error {
		return nil
	}, Logged())

	d.Dispatch(Event{Kind: "playerJoin", Room: "staff"})

	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("playerLeave", func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Kind: "playerLeave"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("serverSummary", func(e Event) error { return nil })

	if !d.HasHandler("serverSummary") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("missing") {
		t.Error("expected handler to not exist")
	}
}
