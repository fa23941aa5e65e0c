package hub

import (
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/model"
)

// push delivers an envelope to one client without blocking the caller. A
// full send buffer means the connection is not draining, and a closed
// client has already disconnected; either way the frame is dropped rather
// than stalling or panicking the hub.
func (h *Hub) push(c *Client, env model.Envelope) {
	if !c.deliver(env) {
		log.Warn().Str("kind", string(c.Kind)).Str("id", c.Identity.ID).
			Str("event", string(env.Event)).Msg("dropping frame for stalled or closed client")
	}
}

// toCustomer fans an event out to every device of a customer, or backlogs
// it for the next reconnect when none is online.
func (h *Hub) toCustomer(userID string, event model.EventName, payload any) {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("encode event")
		return
	}

	h.mu.Lock()
	clients := append([]*Client(nil), h.customers[userID]...)
	if len(clients) == 0 {
		h.customerBacklog[userID] = append(h.customerBacklog[userID], env)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.push(c, env)
	}
}

// toAgent fans an event out to every device of an agent, or backlogs it.
func (h *Hub) toAgent(agentID string, event model.EventName, payload any) {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("encode event")
		return
	}

	h.mu.Lock()
	clients := append([]*Client(nil), h.agents[agentID]...)
	if len(clients) == 0 {
		h.agentBacklog[agentID] = append(h.agentBacklog[agentID], env)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.push(c, env)
	}
}

// broadcastQueue mirrors the pending queue to every connected agent.
func (h *Hub) broadcastQueue() {
	env, err := model.NewEnvelope(model.EventQueueData, model.QueueDataPayload{Items: h.Queue()})
	if err != nil {
		log.Error().Err(err).Msg("encode queue broadcast")
		return
	}

	h.mu.RLock()
	var clients []*Client
	for _, list := range h.agents {
		clients = append(clients, list...)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.push(c, env)
	}
}

// SyncAgent sends one agent client the current queue and its active
// sessions, used when a console connects or explicitly asks.
func (h *Hub) SyncAgent(c *Client) {
	queueEnv, err := model.NewEnvelope(model.EventQueueData, model.QueueDataPayload{Items: h.Queue()})
	if err == nil {
		h.push(c, queueEnv)
	}
	sessEnv, err := model.NewEnvelope(model.EventActiveSessions, model.ActiveSessionsPayload{
		Sessions: h.SessionsFor(c.Identity.ID),
	})
	if err == nil {
		h.push(c, sessEnv)
	}
}
