package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/broker"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := New(zerolog.Nop())

	events := make(chan models.OutboundMessage)
	go h.Run(ctx, events)

	srv := httptest.NewServer(http.HandlerFunc(ServeWS(ctx, h, zerolog.Nop())))
	t.Cleanup(srv.Close)

	return h, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", h.ClientCount(), want)
}

func TestHubDeliversToSubscribedTopics(t *testing.T) {
	h, srv, cancel := startHub(t)
	defer cancel()

	conn := dial(t, srv)
	waitForClients(t, h, 1)

	require.NoError(t, conn.WriteJSON(models.ClientMessage{
		Type:  "subscribe",
		Topic: broker.TopicOpportunities,
	}))
	// Give the read pump a beat to apply the subscription.
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(models.OutboundMessage{
		Type:  models.EventOpportunityNew,
		Topic: broker.TopicOpportunities,
		Seq:   1,
	})
	// Message on a topic the client never subscribed to.
	h.Broadcast(models.OutboundMessage{
		Type:  models.EventMetricsUpdated,
		Topic: broker.TopicMetrics,
		Seq:   1,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.OutboundMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventOpportunityNew, got.Type)
	assert.Equal(t, uint64(1), got.Seq)

	// Nothing else should arrive.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var extra models.OutboundMessage
	err := conn.ReadJSON(&extra)
	assert.Error(t, err, "unsubscribed topic was delivered: %+v", extra)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h, srv, cancel := startHub(t)
	defer cancel()

	conn := dial(t, srv)
	waitForClients(t, h, 1)

	require.NoError(t, conn.WriteJSON(models.ClientMessage{Type: "subscribe", Topic: broker.TopicAlerts}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.WriteJSON(models.ClientMessage{Type: "unsubscribe", Topic: broker.TopicAlerts}))
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(models.OutboundMessage{Type: models.EventAlert, Topic: broker.TopicAlerts, Seq: 1})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg models.OutboundMessage
	assert.Error(t, conn.ReadJSON(&msg))
}

func TestHubDisconnectRemovesClient(t *testing.T) {
	h, srv, cancel := startHub(t)
	defer cancel()

	conn := dial(t, srv)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats["total_connections"])
}
