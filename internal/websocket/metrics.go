package websocket

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type hubMetrics struct {
	connections  metric.Int64Counter
	disconnects  metric.Int64Counter
	messagesSent metric.Int64Counter
}

func newHubMetrics(meter metric.Meter, clients func() int) (*hubMetrics, error) {
	m := &hubMetrics{}
	var err error
	if m.connections, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("WebSocket clients accepted")); err != nil {
		return nil, err
	}
	if m.disconnects, err = meter.Int64Counter("websocket_disconnections_total",
		metric.WithDescription("WebSocket clients removed, by reason")); err != nil {
		return nil, err
	}
	if m.messagesSent, err = meter.Int64Counter("websocket_messages_sent_total",
		metric.WithDescription("Messages queued to clients")); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge("websocket_active_clients",
		metric.WithDescription("Connected WebSocket clients"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(clients()))
			return nil
		})); err != nil {
		return nil, err
	}
	return m, nil
}

// The methods below are no-ops on a nil receiver.

func (m *hubMetrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
}

func (m *hubMetrics) disconnected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.disconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *hubMetrics) sent(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1)
}
