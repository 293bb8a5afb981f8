package hub

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS returns an http.HandlerFunc that upgrades connections and
// attaches them to the hub. The pumps run on the service context, not
// the request context, so they survive the handler returning.
func ServeWS(ctx context.Context, h *Hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := NewClient(uuid.NewString(), conn, h, log)
		h.Register(c)

		go c.WritePump(ctx)
		go c.ReadPump(ctx)
	}
}
