package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Buffer size for outbound messages.
	sendBufferSize = 256
)

// Client is one WebSocket consumer connection. Subscriptions are
// per-topic with an optional filter; messages for unsubscribed topics
// are not delivered.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan models.OutboundMessage
	hub  *Hub

	topics   map[string]*models.SubscriptionFilter
	topicsMu sync.RWMutex

	log zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(id string, conn *websocket.Conn, h *Hub, log zerolog.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan models.OutboundMessage, sendBufferSize),
		hub:    h,
		topics: make(map[string]*models.SubscriptionFilter),
		log:    log.With().Str("component", "hub_client").Str("client", id).Logger(),
	}
}

// ReadPump pumps subscription-management messages from the peer.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg models.ClientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.log.Warn().Err(err).Msg("unexpected close")
				}
				return
			}
			c.handleMessage(msg)
		}
	}
}

// WritePump pumps hub messages to the peer and keeps the connection
// alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage applies a subscribe/unsubscribe request. Both are
// idempotent.
func (c *Client) handleMessage(msg models.ClientMessage) {
	switch msg.Type {
	case "subscribe":
		c.topicsMu.Lock()
		c.topics[msg.Topic] = msg.Filter
		c.topicsMu.Unlock()
		c.log.Debug().Str("topic", msg.Topic).Msg("subscribed")

	case "unsubscribe":
		c.topicsMu.Lock()
		delete(c.topics, msg.Topic)
		c.topicsMu.Unlock()
		c.log.Debug().Str("topic", msg.Topic).Msg("unsubscribed")

	default:
		c.log.Warn().Str("type", msg.Type).Msg("ignoring unknown client message")
	}
}

// wants reports whether the client subscribed to the message's topic
// and the payload passes its filter.
func (c *Client) wants(msg models.OutboundMessage) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()

	filter, ok := c.topics[msg.Topic]
	if !ok {
		return false
	}
	if filter == nil {
		return true
	}
	if opp, ok := msg.Data.(models.BettingOpportunity); ok {
		return filter.Matches(opp)
	}
	return true
}

// trySend queues a message without blocking. False means the client is
// too slow and should be disconnected.
func (c *Client) trySend(msg models.OutboundMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
