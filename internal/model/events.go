package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventName is the discriminator of a websocket envelope.
type EventName string

// Client → server events.
const (
	EventAgentConnect     EventName = "agent-connect"
	EventAgentGetQueue    EventName = "agent-get-queue"
	EventAgentGetSessions EventName = "agent-get-sessions"
	EventAgentAcceptChat  EventName = "agent-accept-chat"
	EventAgentSendMessage EventName = "agent-send-message"
	EventAgentTyping      EventName = "agent-typing"
	EventAgentSetStatus   EventName = "agent-set-status"
	EventAgentEndSession  EventName = "agent-end-session"
	EventAgentRequest     EventName = "agent-request"
	EventUserMessage      EventName = "user-message"
	EventUserTyping       EventName = "user-typing"
	EventUserEndSession   EventName = "user-end-session"
)

// Server → client events.
const (
	EventAgentConnected EventName = "agent-connected"
	EventQueueData      EventName = "queue-data"
	EventActiveSessions EventName = "active-sessions"
	EventChatAccepted   EventName = "chat-accepted"
	EventCustomerMsg    EventName = "customer-message"
	EventCustomerTyping EventName = "customer-typing-status"
	EventSessionEnded   EventName = "session-ended"
	EventAgentJoined    EventName = "agent-joined"
	EventAgentMessage   EventName = "agent-message"
	EventAgentTypingOut EventName = "agent-typing-status"
	EventError          EventName = "error"
)

// Envelope is the wire frame for every websocket event. Payload stays raw
// until Decode maps it onto the struct the event name demands, so a
// malformed frame fails at the transport boundary instead of leaking a
// half-filled struct into a handler.
type Envelope struct {
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event EventName, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// AgentConnectPayload identifies an agent console to the hub.
type AgentConnectPayload struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// AgentConnectedPayload acknowledges an agent console registration.
type AgentConnectedPayload struct {
	AgentID string    `json:"agent_id"`
	At      time.Time `json:"at"`
}

// AcceptChatPayload asks the hub to assign a queued conversation to the
// sending agent.
type AcceptChatPayload struct {
	SessionID string `json:"session_id"`
}

// SessionMessagePayload carries a chat message bound to a session, in either
// direction.
type SessionMessagePayload struct {
	SessionID string  `json:"session_id"`
	Message   Message `json:"message"`
}

// TypingPayload relays a typing indicator for a session.
type TypingPayload struct {
	SessionID string `json:"session_id"`
	IsTyping  bool   `json:"is_typing"`
}

// SetStatusPayload updates an agent's advertised availability.
type SetStatusPayload struct {
	Status AgentStatus `json:"status"`
}

// EndSessionPayload ends an active session.
type EndSessionPayload struct {
	SessionID string `json:"session_id"`
	Resolved  bool   `json:"resolved"`
}

// AgentRequestPayload is the customer-side escalation request: the
// accumulated history plus a reason for the receiving agent's context.
type AgentRequestPayload struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	History   []Message `json:"conversation_history"`
	Reason    string    `json:"reason"`
	Priority  Priority  `json:"priority"`
}

// UserMessagePayload is a customer message on an active session.
type UserMessagePayload struct {
	SessionID string  `json:"session_id"`
	Message   Message `json:"message"`
}

// QueueDataPayload mirrors the pending queue to agent consoles.
type QueueDataPayload struct {
	Items []QueueItem `json:"queue"`
}

// ActiveSessionsPayload mirrors an agent's active sessions.
type ActiveSessionsPayload struct {
	Sessions []ActiveSession `json:"sessions"`
}

// ChatAcceptedPayload confirms to an agent that a queue item became an
// active session.
type ChatAcceptedPayload struct {
	Session ActiveSession `json:"session"`
}

// SessionEndedPayload signals that a session is over, to both sides.
type SessionEndedPayload struct {
	SessionID string `json:"session_id"`
	Resolved  bool   `json:"resolved"`
}

// AgentJoinedPayload tells a customer that a human has taken over.
type AgentJoinedPayload struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ErrorPayload is a backend-reported business error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Decode maps the raw payload onto the struct the event name demands.
// Unknown events and malformed payloads are errors.
func (e Envelope) Decode() (any, error) {
	decode := func(v any) (any, error) {
		if len(e.Payload) == 0 {
			return nil, fmt.Errorf("event %s: missing payload", e.Event)
		}
		if err := json.Unmarshal(e.Payload, v); err != nil {
			return nil, fmt.Errorf("event %s: decode payload: %w", e.Event, err)
		}
		return v, nil
	}

	switch e.Event {
	case EventAgentConnect:
		return decode(&AgentConnectPayload{})
	case EventAgentConnected:
		return decode(&AgentConnectedPayload{})
	case EventAgentGetQueue, EventAgentGetSessions:
		return nil, nil
	case EventAgentAcceptChat:
		return decode(&AcceptChatPayload{})
	case EventAgentSendMessage, EventAgentMessage, EventCustomerMsg:
		return decode(&SessionMessagePayload{})
	case EventAgentTyping, EventAgentTypingOut, EventUserTyping, EventCustomerTyping:
		return decode(&TypingPayload{})
	case EventAgentSetStatus:
		return decode(&SetStatusPayload{})
	case EventAgentEndSession, EventUserEndSession:
		return decode(&EndSessionPayload{})
	case EventAgentRequest:
		return decode(&AgentRequestPayload{})
	case EventUserMessage:
		return decode(&UserMessagePayload{})
	case EventQueueData:
		return decode(&QueueDataPayload{})
	case EventActiveSessions:
		return decode(&ActiveSessionsPayload{})
	case EventChatAccepted:
		return decode(&ChatAcceptedPayload{})
	case EventSessionEnded:
		return decode(&SessionEndedPayload{})
	case EventAgentJoined:
		return decode(&AgentJoinedPayload{})
	case EventError:
		return decode(&ErrorPayload{})
	default:
		return nil, fmt.Errorf("unknown event %q", e.Event)
	}
}
