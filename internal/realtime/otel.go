package realtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/velocityrp/livemap/internal/realtime"

type hubMetrics struct {
	broadcasts metric.Int64Counter
	drops      metric.Int64Counter
}

// newHubMetrics creates the hub's instruments. The global meter provider is
// a no-op until one is registered, so this is safe unconditionally.
func newHubMetrics() *hubMetrics {
	meter := otel.Meter(instrumentationName)

	broadcasts, _ := meter.Int64Counter("livemap.realtime.broadcasts",
		metric.WithDescription("Events broadcast to websocket rooms"))
	drops, _ := meter.Int64Counter("livemap.realtime.clients.dropped",
		metric.WithDescription("Websocket clients dropped for slow consumption"))

	return &hubMetrics{
		broadcasts: broadcasts,
		drops:      drops,
	}
}

func (m *hubMetrics) broadcast(room string) {
	if m.broadcasts != nil {
		m.broadcasts.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("room", room)))
	}
}

func (m *hubMetrics) clientDropped() {
	if m.drops != nil {
		m.drops.Add(context.Background(), 1)
	}
}
