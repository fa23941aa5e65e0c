// Package hub is the realtime core of the support service: it tracks
// connected customers and agents, owns the pending queue of escalated
// conversations and the set of active sessions, and routes chat events
// between the two sides.
package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/model"
)

// Kind says which side of the desk a connection belongs to.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindAgent    Kind = "agent"
)

// Identity is the connecting party as the endpoint authenticated it.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Client is one websocket connection. The same identity may hold several
// clients at once (multiple tabs/devices); events are fanned out to all of
// them.
type Client struct {
	Hub      *Hub
	Kind     Kind
	Identity Identity
	Send     chan model.Envelope

	mu     sync.Mutex
	closed bool
}

// deliver queues env for the write pump. Routing goroutines can race the
// disconnect path, so the send and the close both happen under the client
// lock; a frame for a closed client is dropped, never a panic. Reports
// whether the frame was queued.
func (c *Client) deliver(env model.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Hub routes events between customers and agents. All mutable state is
// guarded by mu; Register/Unregister run through the channel loop so
// connect bookkeeping is serialized with backlog flushing.
type Hub struct {
	mu        sync.RWMutex
	customers map[string][]*Client
	agents    map[string][]*Client
	status    map[string]model.AgentStatus

	queue    []model.QueueItem
	sessions map[string]*model.ActiveSession

	// Offline backlogs, flushed when the identity reconnects.
	customerBacklog map[string][]model.Envelope
	agentBacklog    map[string][]model.Envelope

	register   chan *Client
	unregister chan *Client
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		customers:       make(map[string][]*Client),
		agents:          make(map[string][]*Client),
		status:          make(map[string]model.AgentStatus),
		sessions:        make(map[string]*model.ActiveSession),
		customerBacklog: make(map[string][]model.Envelope),
		agentBacklog:    make(map[string][]model.Envelope),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
	}
}

// Run processes connect and disconnect events until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// RegisterClient announces a new connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection from the hub.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	var backlog []model.Envelope
	switch c.Kind {
	case KindAgent:
		h.agents[c.Identity.ID] = append(h.agents[c.Identity.ID], c)
		backlog = h.agentBacklog[c.Identity.ID]
		delete(h.agentBacklog, c.Identity.ID)
	default:
		h.customers[c.Identity.ID] = append(h.customers[c.Identity.ID], c)
		backlog = h.customerBacklog[c.Identity.ID]
		delete(h.customerBacklog, c.Identity.ID)
	}
	h.mu.Unlock()

	for _, env := range backlog {
		h.push(c, env)
	}
	log.Info().Str("kind", string(c.Kind)).Str("id", c.Identity.ID).Msg("client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	registry := h.customers
	if c.Kind == KindAgent {
		registry = h.agents
	}
	list := registry[c.Identity.ID]
	removed := false
	for i, other := range list {
		if other == c {
			list = append(list[:i], list[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		h.mu.Unlock()
		return
	}
	if len(list) == 0 {
		delete(registry, c.Identity.ID)
		if c.Kind == KindAgent {
			delete(h.status, c.Identity.ID)
		}
	} else {
		registry[c.Identity.ID] = list
	}
	h.mu.Unlock()

	c.shutdown()
	log.Info().Str("kind", string(c.Kind)).Str("id", c.Identity.ID).Msg("client disconnected")
}

// EnqueueRequest puts an escalated conversation on the pending queue and
// mirrors the new queue to every agent console. The returned id is the
// session id the conversation will keep once accepted.
func (h *Hub) EnqueueRequest(p model.AgentRequestPayload) (string, error) {
	priority := p.Priority
	if !priority.IsValid() {
		priority = model.PriorityNormal
	}

	h.mu.Lock()
	for _, item := range h.queue {
		if item.UserID == p.UserID {
			h.mu.Unlock()
			return "", fmt.Errorf("hub: user %s already queued", p.UserID)
		}
	}
	for _, sess := range h.sessions {
		if sess.UserID == p.UserID {
			h.mu.Unlock()
			return "", fmt.Errorf("hub: user %s already in an active session", p.UserID)
		}
	}

	item := model.QueueItem{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		UserName:  p.UserName,
		UserEmail: p.UserEmail,
		History:   p.History,
		Reason:    p.Reason,
		Priority:  priority,
		AddedAt:   time.Now(),
	}
	h.queue = insertByPriority(h.queue, item)
	h.mu.Unlock()

	h.broadcastQueue()
	log.Info().Str("user", p.UserID).Str("session", item.ID).Str("reason", p.Reason).Msg("agent request queued")
	return item.ID, nil
}

// Accept assigns a queued conversation to an agent: the queue item is
// removed and the active session created under one lock, so two agents
// racing for the same item cannot both win. The loser gets an error.
func (h *Hub) Accept(agent Identity, sessionID string) error {
	h.mu.Lock()
	idx := -1
	for i, item := range h.queue {
		if item.ID == sessionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		h.mu.Unlock()
		return fmt.Errorf("hub: session %s is not waiting (already accepted or gone)", sessionID)
	}
	item := h.queue[idx]
	h.queue = append(h.queue[:idx], h.queue[idx+1:]...)

	sess := &model.ActiveSession{
		ID:        item.ID,
		UserID:    item.UserID,
		UserName:  item.UserName,
		UserEmail: item.UserEmail,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Messages:  item.History,
	}
	h.sessions[sess.ID] = sess
	h.mu.Unlock()

	h.toAgent(agent.ID, model.EventChatAccepted, model.ChatAcceptedPayload{Session: *sess})
	h.toCustomer(sess.UserID, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID:    sess.UserID,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		SessionID: sess.ID,
		Message:   agent.Name + " has joined the conversation",
	})
	h.broadcastQueue()
	log.Info().Str("agent", agent.ID).Str("session", sess.ID).Msg("chat accepted")
	return nil
}

// RouteUserMessage forwards a customer message to the agent on the session.
func (h *Hub) RouteUserMessage(from Identity, p model.UserMessagePayload) error {
	h.mu.Lock()
	sess, ok := h.sessions[p.SessionID]
	if !ok || sess.UserID != from.ID {
		h.mu.Unlock()
		return fmt.Errorf("hub: no active session %s for user %s", p.SessionID, from.ID)
	}
	sess.Messages = append(sess.Messages, p.Message)
	agentID := sess.AgentID
	h.mu.Unlock()

	h.toAgent(agentID, model.EventCustomerMsg, model.SessionMessagePayload{
		SessionID: p.SessionID,
		Message:   p.Message,
	})
	return nil
}

// RouteAgentMessage forwards an agent message to the customer on the session.
func (h *Hub) RouteAgentMessage(from Identity, p model.SessionMessagePayload) error {
	h.mu.Lock()
	sess, ok := h.sessions[p.SessionID]
	if !ok || sess.AgentID != from.ID {
		h.mu.Unlock()
		return fmt.Errorf("hub: no active session %s for agent %s", p.SessionID, from.ID)
	}
	sess.Messages = append(sess.Messages, p.Message)
	userID := sess.UserID
	h.mu.Unlock()

	h.toCustomer(userID, model.EventAgentMessage, model.SessionMessagePayload{
		SessionID: p.SessionID,
		Message:   p.Message,
	})
	return nil
}

// RouteTyping relays a typing indicator across the session. Indicators
// are best-effort; a stale session id is silently dropped.
func (h *Hub) RouteTyping(from Identity, kind Kind, p model.TypingPayload) {
	h.mu.RLock()
	sess, ok := h.sessions[p.SessionID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	agentID, userID := sess.AgentID, sess.UserID
	h.mu.RUnlock()

	if kind == KindCustomer && userID == from.ID {
		h.toAgent(agentID, model.EventCustomerTyping, p)
	} else if kind == KindAgent && agentID == from.ID {
		h.toCustomer(userID, model.EventAgentTypingOut, p)
	}
}

// EndSession tears an active session down and tells both sides.
func (h *Hub) EndSession(sessionID string, resolved bool) error {
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("hub: no active session %s", sessionID)
	}
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	ended := model.SessionEndedPayload{SessionID: sessionID, Resolved: resolved}
	h.toCustomer(sess.UserID, model.EventSessionEnded, ended)
	h.toAgent(sess.AgentID, model.EventSessionEnded, ended)
	log.Info().Str("session", sessionID).Bool("resolved", resolved).Msg("session ended")
	return nil
}

// CancelRequest withdraws a customer's pending queue item, if one exists,
// and mirrors the shrunk queue to every agent console. Reports whether
// anything was removed.
func (h *Hub) CancelRequest(userID string) bool {
	h.mu.Lock()
	idx := -1
	for i, item := range h.queue {
		if item.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.queue = append(h.queue[:idx], h.queue[idx+1:]...)
	h.mu.Unlock()

	h.broadcastQueue()
	log.Info().Str("user", userID).Msg("agent request withdrawn")
	return true
}

// EndSessionBy ends a session on behalf of one of its participants. A
// connection that is not on the session cannot end it.
func (h *Hub) EndSessionBy(from Identity, kind Kind, sessionID string, resolved bool) error {
	h.mu.RLock()
	sess, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("hub: no active session %s", sessionID)
	}
	if (kind == KindCustomer && sess.UserID != from.ID) ||
		(kind == KindAgent && sess.AgentID != from.ID) {
		return fmt.Errorf("hub: session %s does not belong to %s", sessionID, from.ID)
	}
	return h.EndSession(sessionID, resolved)
}

// SetStatus records an agent's advertised availability.
func (h *Hub) SetStatus(agentID string, status model.AgentStatus) {
	h.mu.Lock()
	h.status[agentID] = status
	h.mu.Unlock()
}

// Status returns an agent's advertised availability, defaulting to online.
func (h *Hub) Status(agentID string) model.AgentStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.status[agentID]; ok {
		return s
	}
	return model.AgentOnline
}

// Queue returns a copy of the current pending queue.
func (h *Hub) Queue() []model.QueueItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.QueueItem, len(h.queue))
	copy(out, h.queue)
	return out
}

// SessionsFor returns the active sessions assigned to an agent.
func (h *Hub) SessionsFor(agentID string) []model.ActiveSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []model.ActiveSession
	for _, sess := range h.sessions {
		if sess.AgentID == agentID {
			out = append(out, *sess)
		}
	}
	return out
}

// insertByPriority keeps the queue ordered high before normal before low,
// FIFO within the same priority.
func insertByPriority(queue []model.QueueItem, item model.QueueItem) []model.QueueItem {
	rank := map[model.Priority]int{
		model.PriorityHigh:   0,
		model.PriorityNormal: 1,
		model.PriorityLow:    2,
	}
	pos := len(queue)
	for i, other := range queue {
		if rank[other.Priority] > rank[item.Priority] {
			pos = i
			break
		}
	}
	queue = append(queue, model.QueueItem{})
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = item
	return queue
}
