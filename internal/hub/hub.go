// Package hub fans derived events out to external WebSocket consumers.
package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/broker"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

const broadcastBuffer = 1000

// Hub maintains the set of active WebSocket clients and forwards broker
// events to the ones whose subscriptions match.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan models.OutboundMessage
	register   chan *Client
	unregister chan *Client

	totalConnections int64
	totalMessages    int64
	metricsMu        sync.Mutex

	log zerolog.Logger
}

// New creates a hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.OutboundMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run drives the hub loop, forwarding events from the broker
// subscription until the context is cancelled.
func (h *Hub) Run(ctx context.Context, events <-chan models.OutboundMessage) {
	h.log.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg, ok := <-events:
			if !ok {
				h.shutdown()
				return
			}
			h.broadcastMessage(msg)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast queues a message for fan-out. Non-blocking; drops when the
// hub is saturated.
func (h *Hub) Broadcast(msg models.OutboundMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("topic", msg.Topic).Msg("broadcast buffer full, dropping message")
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true

	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()

	h.log.Info().Str("client", c.ID).Int("total", len(h.clients)).Msg("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Info().Str("client", c.ID).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

func (h *Hub) broadcastMessage(msg models.OutboundMessage) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	for _, c := range clients {
		if !c.wants(msg) {
			continue
		}
		if c.trySend(msg) {
			sent++
		} else {
			// Slow consumer: disconnect rather than stall the hub.
			h.log.Warn().Str("client", c.ID).Msg("client buffer full, disconnecting")
			go h.Unregister(c)
		}
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
}

// ClientCount returns the number of active clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters for the health endpoint.
func (h *Hub) Stats() map[string]interface{} {
	h.clientsMu.RLock()
	active := len(h.clients)
	h.clientsMu.RUnlock()

	h.metricsMu.Lock()
	conns := h.totalConnections
	msgs := h.totalMessages
	h.metricsMu.Unlock()

	return map[string]interface{}{
		"active_clients":    active,
		"total_connections": conns,
		"total_messages":    msgs,
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.log.Info().Int("clients", len(h.clients)).Msg("shutting down hub")

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// AttachBroker subscribes the hub to every derived-event topic and
// returns the subscription feeding Run.
func AttachBroker(b *broker.Broker) *broker.Subscription {
	sub := b.NewSubscription()
	for _, topic := range []string{
		broker.TopicOpportunities,
		broker.TopicMetrics,
		broker.TopicAlerts,
		broker.TopicSystem,
	} {
		b.Subscribe(sub, topic, nil)
	}
	return sub
}
