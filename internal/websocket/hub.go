package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"macrostress/internal/infrastructure"
)

// Message types sent to clients.
const (
	TypeConnection = "connection"
)

// Message is the envelope for every frame the hub sends.
type Message struct {
	Type        string      `json:"type"`
	OperationID string      `json:"operation_id,omitempty"`
	Status      string      `json:"status,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// HubStats counts hub activity since start.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	DroppedClients   int64 `json:"dropped_clients"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// A client whose send buffer is full is disconnected rather than allowed to
// stall the broadcast.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *hubMetrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	droppedClients   atomic.Int64

	quit     chan struct{}
	done     chan struct{}
	running  bool
	stopOnce sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithTelemetry records hub metrics on tel's meter.
func WithTelemetry(tel *infrastructure.Telemetry) HubOption {
	return func(h *Hub) {
		if tel == nil {
			return
		}
		m, err := newHubMetrics(tel.Meter, h.ClientCount)
		if err != nil {
			h.logger.Warn("websocket_metrics_unavailable", slog.String("error", err.Error()))
			return
		}
		h.metrics = m
	}
}

// NewHub creates a Hub. Call Start before registering clients.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the hub loop in a goroutine.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("hub_stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)
			h.metrics.connected(context.Background())

			h.logger.Info("client_registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count))
			h.sendTo(c, h.encode(Message{
				Type:      TypeConnection,
				Status:    "connected",
				Data:      map[string]string{"client_id": c.id},
				Timestamp: time.Now(),
			}))

		case c := <-h.unregister:
			h.remove(c, "closed")

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				h.sendTo(c, msg)
			}
		}
	}
}

func (h *Hub) sendTo(c *Client, msg []byte) {
	if msg == nil {
		return
	}
	select {
	case c.send <- msg:
		h.messagesSent.Add(1)
		h.metrics.sent(context.Background())
	default:
		h.droppedClients.Add(1)
		h.remove(c, "send_buffer_full")
	}
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.disconnected(context.Background(), reason)
	h.logger.Info("client_unregistered",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Duration("connected_for", time.Since(c.connectedAt)),
		slog.Int("total_clients", count))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) encode(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		h.logger.Error("message_encode_failed",
			slog.String("type", m.Type),
			slog.String("error", err.Error()))
		return nil
	}
	return data
}

// BroadcastUpdate sends a typed event about one operation to every client.
// It never blocks once the hub has stopped.
func (h *Hub) BroadcastUpdate(eventType, operationID, status string, data interface{}) {
	msg := h.encode(Message{
		Type:        eventType,
		OperationID: operationID,
		Status:      status,
		Data:        data,
		Timestamp:   time.Now(),
	})
	if msg == nil {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		DroppedClients:   h.droppedClients.Load(),
	}
}

// Stop closes every client and ends the hub loop. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}
	})
}
