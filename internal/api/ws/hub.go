package ws

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	redisstore "github.com/mechanicbuddy/control-plane/internal/store/redis"
)

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	pubsub *redisstore.Client
}

// NewHub creates a new WebSocket hub.
func NewHub(pubsub *redisstore.Client) *Hub {
	return &Hub{pubsub: pubsub}
}

// ServeProvisionLog handles WebSocket connections for live provisioning
// logs. Subscribes to Redis channel "provision:<slug>" and streams step
// entries to the connected operator until the socket or run ends.
func (h *Hub) ServeProvisionLog(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !domain.ValidSlug(slug) {
		http.Error(w, "invalid tenant slug", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	channel := redisstore.ProvisionChannel(slug)

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("tenant", slug).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
