// Package history keeps the rolling population series used by trend charts.
package history

import (
	"time"

	"github.com/velocityrp/livemap/internal/model"
	"github.com/velocityrp/livemap/internal/queue"
)

// DefaultCapacity covers a rolling day at the expected 5s push cadence.
const DefaultCapacity = 17280

// Recorder appends one sample per accepted position push and evicts from
// the head once the series exceeds its cap. It is a side consumer of push
// events: a dropped sample degrades chart resolution, never snapshot
// correctness.
type Recorder struct {
	samples *queue.Ring[model.PopulationSample]
}

// New creates a recorder. A non-positive capacity falls back to the default.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{samples: queue.NewRing[model.PopulationSample](capacity)}
}

// Record appends a sample.
func (r *Recorder) Record(count int, now time.Time) {
	r.samples.Push(model.PopulationSample{Timestamp: now, Count: count})
}

// Read returns a snapshot copy of the series, oldest first. Callers never
// observe a mutating collection.
func (r *Recorder) Read() []model.PopulationSample {
	return r.samples.Snapshot()
}

// Len returns the current number of samples.
func (r *Recorder) Len() int {
	return r.samples.Len()
}
