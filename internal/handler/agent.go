package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
)

// AgentHandler upgrades an agent console connection and registers it with
// the hub. The console still announces itself with agent-connect before
// it gets its queue and session snapshots.
func AgentHandler(h *hub.Hub, w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("agent upgrade failed")
		return
	}

	client := &hub.Client{
		Hub:  h,
		Kind: hub.KindAgent,
		Identity: hub.Identity{
			ID:   agentID,
			Name: r.URL.Query().Get("name"),
		},
		Send: make(chan model.Envelope, sendBuffer),
	}
	h.RegisterClient(client)

	go writePump(client, conn)
	go readPump(client, conn)
}
