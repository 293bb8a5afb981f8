// Package feed maintains the inbound WebSocket connection to the odds
// provider: automatic reconnection with backoff, heartbeats, and
// subscription replay.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateFailed means the bounded reconnect attempts were exhausted.
	// The client stays down until Reconnect() is called.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	writeWait       = 10 * time.Second
	eventBufferSize = 1024
)

// Client is the inbound transport of the distribution layer. Decoded
// events are delivered on Events(); transport-level failures are
// handled internally by reconnecting.
type Client struct {
	cfg config.FeedConfig

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex // gorilla allows one concurrent writer
	state   atomic.Int32

	events      chan models.InboundEvent
	subs        map[string]*models.SubscriptionFilter
	subsMu      sync.Mutex
	reconnectCh chan struct{}

	dropped atomic.Int64 // undecodable/unknown inbound messages
	log     zerolog.Logger
}

// NewClient creates a feed client. Run starts it.
func NewClient(cfg config.FeedConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		events:      make(chan models.InboundEvent, eventBufferSize),
		subs:        make(map[string]*models.SubscriptionFilter),
		reconnectCh: make(chan struct{}, 1),
		log:         log.With().Str("component", "feed").Logger(),
	}
}

// Events returns the stream of decoded inbound events. Closed when Run
// returns.
func (c *Client) Events() <-chan models.InboundEvent {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Subscribe registers interest in a topic with the provider. The
// subscription survives reconnects: the full set is replayed every time
// the connection comes back. Idempotent.
func (c *Client) Subscribe(topic string, filter *models.SubscriptionFilter) {
	c.subsMu.Lock()
	c.subs[topic] = filter
	c.subsMu.Unlock()

	if c.State() == StateConnected {
		c.send(models.ClientMessage{Type: "subscribe", Topic: topic, Filter: filter})
	}
}

// Unsubscribe removes a topic subscription. Idempotent.
func (c *Client) Unsubscribe(topic string) {
	c.subsMu.Lock()
	_, had := c.subs[topic]
	delete(c.subs, topic)
	c.subsMu.Unlock()

	if had && c.State() == StateConnected {
		c.send(models.ClientMessage{Type: "unsubscribe", Topic: topic})
	}
}

// Reconnect restarts connection attempts after the client entered
// StateFailed. No-op in any other state.
func (c *Client) Reconnect() {
	if c.State() != StateFailed {
		return
	}
	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}
}

// Run drives the connection until the context is cancelled: connect
// with exponential backoff, pump messages, reconnect on any failure.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	for {
		if err := c.connectWithBackoff(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			// Attempts exhausted: park in failed state until a manual
			// reconnect or shutdown.
			c.state.Store(int32(StateFailed))
			c.log.Error().Err(err).Msg("reconnect attempts exhausted, feed marked failed")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.reconnectCh:
				c.log.Info().Msg("manual reconnect requested")
				continue
			}
		}

		// Connected: pump until the connection drops.
		c.readLoop(ctx)
		c.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Msg("feed connection lost, reconnecting")
	}
}

// connectWithBackoff dials the provider, retrying on schedule
// base*2^attempt (with jitter) capped at the max delay, for at most the
// configured number of attempts.
func (c *Client) connectWithBackoff(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectBaseDelay
	bo.MaxInterval = c.cfg.ReconnectMaxDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 0; ; attempt++ {
		c.state.Store(int32(StateConnecting))

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err == nil {
			c.connMu.Lock()
			c.conn = conn
			c.connMu.Unlock()
			c.state.Store(int32(StateConnected))
			c.log.Info().Str("url", c.cfg.URL).Int("attempt", attempt).Msg("feed connected")
			c.resubscribe()
			return nil
		}

		c.state.Store(int32(StateDisconnected))

		// Budget spent: report the failure now, no parting sleep.
		if c.cfg.ReconnectMaxAttempts > 0 && attempt >= c.cfg.ReconnectMaxAttempts {
			return err
		}

		delay := bo.NextBackOff()
		c.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("feed dial failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// readLoop pumps inbound messages until the connection errors out. The
// heartbeat goroutine pings on the configured interval; a missing pong
// lets the read deadline expire, which surfaces here as a read error
// and triggers a reconnect.
func (c *Client) readLoop(ctx context.Context) {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}

	pongWait := c.cfg.HeartbeatInterval + c.cfg.HeartbeatTimeout
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	heartbeatDone := make(chan struct{})
	go c.heartbeat(ctx, conn, heartbeatDone)
	defer close(heartbeatDone)
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("feed read error")
			}
			return
		}

		ev, err := models.DecodeInbound(raw)
		if err != nil {
			// Unknown kinds and malformed payloads are dropped at the
			// boundary, never forwarded.
			c.dropped.Add(1)
			c.log.Warn().Err(err).Msg("dropping inbound message")
			continue
		}

		if ev.Type == models.MessageTypePing {
			c.send(models.ClientMessage{Type: "pong"})
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// heartbeat sends pings on the configured interval for the lifetime of
// one connection.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.Warn().Err(err).Msg("heartbeat ping failed")
				conn.Close()
				return
			}
		}
	}
}

// resubscribe replays the subscription set after a reconnect.
func (c *Client) resubscribe() {
	c.subsMu.Lock()
	topics := make(map[string]*models.SubscriptionFilter, len(c.subs))
	for topic, filter := range c.subs {
		topics[topic] = filter
	}
	c.subsMu.Unlock()

	for topic, filter := range topics {
		c.send(models.ClientMessage{Type: "subscribe", Topic: topic, Filter: filter})
	}
}

// send writes a control message to the provider. Best-effort: failures
// surface later as read errors.
func (c *Client) send(msg models.ClientMessage) {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Str("type", msg.Type).Msg("control message write failed")
	}
}

// Dropped returns how many inbound messages were rejected at the
// boundary.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}
