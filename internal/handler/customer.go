package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
)

// CustomerHandler upgrades a customer widget connection and registers it
// with the hub. Identity comes from query parameters; authentication is
// handled by the gateway in front of this service.
func CustomerHandler(h *hub.Hub, w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("customer upgrade failed")
		return
	}

	client := &hub.Client{
		Hub:  h,
		Kind: hub.KindCustomer,
		Identity: hub.Identity{
			ID:    userID,
			Name:  r.URL.Query().Get("name"),
			Email: r.URL.Query().Get("email"),
		},
		Send: make(chan model.Envelope, sendBuffer),
	}
	h.RegisterClient(client)

	go writePump(client, conn)
	go readPump(client, conn)
}
