package handler

import (
	"time"

	"github.com/rs/zerolog/log"

	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
)

// dispatch decodes one inbound envelope and applies it to the hub. Events
// are guarded by actor kind: a customer cannot drive the agent surface
// and vice versa.
func dispatch(c *hub.Client, env model.Envelope) {
	payload, err := env.Decode()
	if err != nil {
		log.Warn().Err(err).Str("id", c.Identity.ID).Msg("rejecting malformed event")
		sendError(c, "invalid event payload")
		return
	}

	switch env.Event {
	case model.EventAgentConnect, model.EventAgentGetQueue, model.EventAgentGetSessions,
		model.EventAgentAcceptChat, model.EventAgentSendMessage, model.EventAgentTyping,
		model.EventAgentSetStatus, model.EventAgentEndSession:
		if c.Kind != hub.KindAgent {
			sendError(c, "not allowed for this connection")
			return
		}
		dispatchAgent(c, env.Event, payload)

	case model.EventAgentRequest, model.EventUserMessage, model.EventUserTyping,
		model.EventUserEndSession:
		if c.Kind != hub.KindCustomer {
			sendError(c, "not allowed for this connection")
			return
		}
		dispatchCustomer(c, env.Event, payload)

	default:
		sendError(c, "unknown event type")
	}
}

func dispatchAgent(c *hub.Client, event model.EventName, payload any) {
	h := c.Hub
	switch event {
	case model.EventAgentConnect:
		sendEvent(c, model.EventAgentConnected, model.AgentConnectedPayload{
			AgentID: c.Identity.ID,
			At:      time.Now(),
		})
		h.SyncAgent(c)

	case model.EventAgentGetQueue:
		sendEvent(c, model.EventQueueData, model.QueueDataPayload{Items: h.Queue()})

	case model.EventAgentGetSessions:
		sendEvent(c, model.EventActiveSessions, model.ActiveSessionsPayload{
			Sessions: h.SessionsFor(c.Identity.ID),
		})

	case model.EventAgentAcceptChat:
		p := payload.(*model.AcceptChatPayload)
		if err := h.Accept(c.Identity, p.SessionID); err != nil {
			sendError(c, err.Error())
		}

	case model.EventAgentSendMessage:
		p := payload.(*model.SessionMessagePayload)
		if err := h.RouteAgentMessage(c.Identity, *p); err != nil {
			sendError(c, err.Error())
		}

	case model.EventAgentTyping:
		p := payload.(*model.TypingPayload)
		h.RouteTyping(c.Identity, hub.KindAgent, *p)

	case model.EventAgentSetStatus:
		p := payload.(*model.SetStatusPayload)
		if !p.Status.IsValid() {
			sendError(c, "unknown agent status")
			return
		}
		h.SetStatus(c.Identity.ID, p.Status)

	case model.EventAgentEndSession:
		p := payload.(*model.EndSessionPayload)
		if err := h.EndSessionBy(c.Identity, hub.KindAgent, p.SessionID, p.Resolved); err != nil {
			sendError(c, err.Error())
		}
	}
}

func dispatchCustomer(c *hub.Client, event model.EventName, payload any) {
	h := c.Hub
	switch event {
	case model.EventAgentRequest:
		p := payload.(*model.AgentRequestPayload)
		// The connection, not the payload, says who is asking.
		p.UserID = c.Identity.ID
		if p.UserName == "" {
			p.UserName = c.Identity.Name
		}
		if p.UserEmail == "" {
			p.UserEmail = c.Identity.Email
		}
		if _, err := h.EnqueueRequest(*p); err != nil {
			sendError(c, err.Error())
		}

	case model.EventUserMessage:
		p := payload.(*model.UserMessagePayload)
		if err := h.RouteUserMessage(c.Identity, *p); err != nil {
			sendError(c, err.Error())
		}

	case model.EventUserTyping:
		p := payload.(*model.TypingPayload)
		h.RouteTyping(c.Identity, hub.KindCustomer, *p)

	case model.EventUserEndSession:
		p := payload.(*model.EndSessionPayload)
		// A customer still waiting in the queue has no session to end;
		// withdraw the pending item instead.
		if h.CancelRequest(c.Identity.ID) {
			return
		}
		if err := h.EndSessionBy(c.Identity, hub.KindCustomer, p.SessionID, p.Resolved); err != nil {
			sendError(c, err.Error())
		}
	}
}
