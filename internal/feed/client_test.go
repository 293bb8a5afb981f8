package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func testFeedConfig(url string) config.FeedConfig {
	return config.FeedConfig{
		URL:                  url,
		ReconnectBaseDelay:   10 * time.Millisecond,
		ReconnectMaxDelay:    50 * time.Millisecond,
		ReconnectMaxAttempts: 3,
		HeartbeatInterval:    time.Second,
		HeartbeatTimeout:     time.Second,
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", c.State(), want)
}

func TestFeedMarksFailedAfterBoundedAttempts(t *testing.T) {
	// Nothing listens on this port: every dial fails immediately.
	c := NewClient(testFeedConfig("ws://127.0.0.1:1/ws"), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitForState(t, c, StateFailed)

	// Failed is sticky until a manual reconnect is requested.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateFailed, c.State())

	c.Reconnect()
	deadline := time.Now().Add(time.Second)
	moved := false
	for time.Now().Before(deadline) {
		if s := c.State(); s == StateConnecting || s == StateDisconnected {
			moved = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, moved, "manual reconnect should restart dialing")
}

// Once the attempt budget is spent the failure must be reported
// immediately, not after one more backoff sleep.
func TestFeedFailsPromptlyAfterLastAttempt(t *testing.T) {
	cfg := config.FeedConfig{
		URL:                  "ws://127.0.0.1:1/ws",
		ReconnectBaseDelay:   150 * time.Millisecond,
		ReconnectMaxDelay:    2 * time.Second,
		ReconnectMaxAttempts: 1,
		HeartbeatInterval:    time.Second,
		HeartbeatTimeout:     time.Second,
	}
	c := NewClient(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	go c.Run(ctx)
	waitForState(t, c, StateFailed)

	// Two instant dial failures separated by one jittered base delay.
	// A trailing sleep after the second failure would roughly double this.
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestFeedDeliversDecodedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"odds_update","data":{"event_id":"evt-1","market_key":"player_points","selection":"Over 25.5","odds":2.05,"timestamp":"2026-03-01T12:00:00Z"},"timestamp":1}`,
		))
		// Unknown kinds must be dropped, not forwarded and not fatal.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery","data":{},"timestamp":2}`))
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"settlement","data":{"bet_id":"bet-9","result":"won","settled_at":"2026-03-01T13:00:00Z"},"timestamp":3}`,
		))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(testFeedConfig(wsURL(srv)), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	first := <-c.Events()
	require.NotNil(t, first.Odds)
	assert.Equal(t, 2.05, first.Odds.Odds)

	second := <-c.Events()
	require.NotNil(t, second.Settlement)
	assert.Equal(t, "bet-9", second.Settlement.BetID)

	assert.Equal(t, int64(1), c.Dropped())
}

func TestFeedReplaysSubscriptionsOnReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribes := make(chan models.ClientMessage, 8)
	connections := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connections++
		drop := connections == 1

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg models.ClientMessage
			if json.Unmarshal(raw, &msg) == nil && msg.Type == "subscribe" {
				subscribes <- msg
				if drop {
					// Kill the first connection to force a reconnect.
					conn.Close()
					return
				}
			}
		}
	}))
	defer srv.Close()

	c := NewClient(testFeedConfig(wsURL(srv)), zerolog.Nop())
	c.Subscribe("props.basketball_nba", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// Replayed on first connect, then again after the forced drop.
	for i := 0; i < 2; i++ {
		select {
		case msg := <-subscribes:
			assert.Equal(t, "props.basketball_nba", msg.Topic)
		case <-time.After(3 * time.Second):
			t.Fatalf("subscribe %d never arrived", i+1)
		}
	}
}
