// Package realtime pushes registration and gate events to admin dashboards
// over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Feed events.
const (
	EventRegistrationSubmitted = "registration_submitted"
	EventStatusChanged         = "status_changed"
	EventTicketIssued          = "ticket_issued"
	EventCheckedIn             = "checked_in"
	EventAttendanceMarked      = "attendance_marked"
	EventRegistrationDeleted   = "registration_deleted"
)

// Publisher is what the services use to announce state changes.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, interface{}) {}

// Bus carries events between processes.
type Bus interface {
	PublishFeedEvent(event string, payload []byte) error
	SubscribeFeed(ctx context.Context, handler func(event string, payload []byte)) error
}

// Hub maintains the set of connected dashboards and fans events out to them.
// With a Bus configured, events go through the bus so that every instance
// (including this one) delivers them exactly once.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	bus     Bus
	backoff time.Duration
}

// NewHub creates a hub. bus may be nil for single-process deployments.
func NewHub(logger *zap.Logger, bus Bus) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		bus:     bus,
		backoff: 2 * time.Second,
	}
}

// Run subscribes to the bus until ctx is done, resubscribing whenever the
// subscription drops. It returns at once without a bus.
func (h *Hub) Run(ctx context.Context) {
	if h.bus == nil {
		return
	}
	for {
		err := h.bus.SubscribeFeed(ctx, func(event string, payload []byte) {
			h.Broadcast(event, json.RawMessage(payload))
		})
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("feed subscription dropped", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.backoff):
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("feed client joined", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("feed client left", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to local clients only.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish announces an event to every instance, or locally without a bus.
func (h *Hub) Publish(event string, payload interface{}) {
	if h.bus == nil {
		h.Broadcast(event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal feed event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.bus.PublishFeedEvent(event, data); err != nil {
		h.logger.Warn("publish feed event failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(event, json.RawMessage(data))
	}
}
