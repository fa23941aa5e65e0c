package chat

import (
	"errors"
	"sync"

	"hearthdesk/internal/model"
)

// AgentInfo identifies the human agent behind a console.
type AgentInfo struct {
	ID   string
	Name string
}

// Console is the agent dashboard's client state: a read-only mirror of the
// hub's pending queue plus the agent's active sessions. Queue and active
// sessions are disjoint; accepting a queue item moves it across in one
// step, exactly once.
type Console struct {
	transport Transport
	agent     AgentInfo

	mu       sync.Mutex
	queue    []model.QueueItem
	sessions map[string]*model.ActiveSession
	typing   map[string]bool

	offs []func()

	// OnUpdate fires after any state change so a UI can re-render.
	OnUpdate func()
	// OnError is the toast surface for backend-reported errors.
	OnError func(error)
}

// NewConsole creates a console for the given agent on the shared transport.
func NewConsole(t Transport, agent AgentInfo) *Console {
	return &Console{
		transport: t,
		agent:     agent,
		sessions:  make(map[string]*model.ActiveSession),
		typing:    make(map[string]bool),
	}
}

// Start identifies the console to the hub, subscribes to its events and
// asks for the current queue and session snapshots.
func (c *Console) Start() error {
	t := c.transport
	c.offs = []func(){
		t.On(model.EventQueueData, c.handleQueueData),
		t.On(model.EventActiveSessions, c.handleActiveSessions),
		t.On(model.EventChatAccepted, c.handleChatAccepted),
		t.On(model.EventCustomerMsg, c.handleCustomerMessage),
		t.On(model.EventCustomerTyping, c.handleCustomerTyping),
		t.On(model.EventSessionEnded, c.handleSessionEnded),
		t.On(model.EventError, c.handleError),
	}

	if err := t.Emit(model.EventAgentConnect, model.AgentConnectPayload{
		AgentID:   c.agent.ID,
		AgentName: c.agent.Name,
	}); err != nil {
		return err
	}
	if err := t.Emit(model.EventAgentGetQueue, nil); err != nil {
		return err
	}
	return t.Emit(model.EventAgentGetSessions, nil)
}

// Stop removes every handler Start registered.
func (c *Console) Stop() {
	for _, off := range c.offs {
		off()
	}
	c.offs = nil
}

// Accept asks the hub to assign the queued conversation to this agent.
// The queue/session move happens when chat-accepted comes back.
func (c *Console) Accept(sessionID string) error {
	return c.transport.Emit(model.EventAgentAcceptChat, model.AcceptChatPayload{SessionID: sessionID})
}

// SendMessage relays an agent message on an active session.
func (c *Console) SendMessage(sessionID, content string) error {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return ErrUnbound
	}

	msg := model.NewMessage(model.RoleAgent, content)
	if err := c.transport.Emit(model.EventAgentSendMessage, model.SessionMessagePayload{
		SessionID: sessionID,
		Message:   msg,
	}); err != nil {
		return err
	}

	c.mu.Lock()
	sess.Messages = append(sess.Messages, msg)
	c.mu.Unlock()
	c.render()
	return nil
}

// SetTyping relays this agent's typing indicator for a session.
func (c *Console) SetTyping(sessionID string, isTyping bool) error {
	return c.transport.Emit(model.EventAgentTyping, model.TypingPayload{
		SessionID: sessionID,
		IsTyping:  isTyping,
	})
}

// SetStatus updates the agent's advertised availability.
func (c *Console) SetStatus(status model.AgentStatus) error {
	return c.transport.Emit(model.EventAgentSetStatus, model.SetStatusPayload{Status: status})
}

// EndSession closes an active session from the agent side. The local
// session entry is removed when session-ended comes back from the hub.
func (c *Console) EndSession(sessionID string, resolved bool) error {
	return c.transport.Emit(model.EventAgentEndSession, model.EndSessionPayload{
		SessionID: sessionID,
		Resolved:  resolved,
	})
}

// Queue returns a copy of the pending queue mirror.
func (c *Console) Queue() []model.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.QueueItem, len(c.queue))
	copy(out, c.queue)
	return out
}

// Sessions returns a copy of the active sessions.
func (c *Console) Sessions() []model.ActiveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ActiveSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, *s)
	}
	return out
}

// Session returns one active session by id.
func (c *Console) Session(id string) (model.ActiveSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return model.ActiveSession{}, false
	}
	return *s, true
}

// CustomerTyping reports whether the customer on a session is typing.
func (c *Console) CustomerTyping(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing[sessionID]
}

func (c *Console) handleQueueData(payload any) {
	p, ok := payload.(*model.QueueDataPayload)
	if !ok {
		return
	}
	c.mu.Lock()
	c.queue = p.Items
	c.mu.Unlock()
	c.render()
}

func (c *Console) handleActiveSessions(payload any) {
	p, ok := payload.(*model.ActiveSessionsPayload)
	if !ok {
		return
	}
	c.mu.Lock()
	c.sessions = make(map[string]*model.ActiveSession, len(p.Sessions))
	for i := range p.Sessions {
		sess := p.Sessions[i]
		c.sessions[sess.ID] = &sess
	}
	c.mu.Unlock()
	c.render()
}

// handleChatAccepted moves a queue item into the active set. The removal
// and the insert happen under one lock, and a duplicate delivery of the
// same session id changes nothing.
func (c *Console) handleChatAccepted(payload any) {
	p, ok := payload.(*model.ChatAcceptedPayload)
	if !ok {
		return
	}
	sess := p.Session

	c.mu.Lock()
	for i, item := range c.queue {
		if item.ID == sess.ID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	if _, exists := c.sessions[sess.ID]; !exists {
		c.sessions[sess.ID] = &sess
	}
	c.mu.Unlock()
	c.render()
}

func (c *Console) handleCustomerMessage(payload any) {
	p, ok := payload.(*model.SessionMessagePayload)
	if !ok {
		return
	}
	c.mu.Lock()
	sess, ok := c.sessions[p.SessionID]
	if ok {
		sess.Messages = append(sess.Messages, p.Message)
	}
	c.mu.Unlock()
	if ok {
		c.render()
	}
}

func (c *Console) handleCustomerTyping(payload any) {
	p, ok := payload.(*model.TypingPayload)
	if !ok {
		return
	}
	c.mu.Lock()
	c.typing[p.SessionID] = p.IsTyping
	c.mu.Unlock()
	c.render()
}

func (c *Console) handleSessionEnded(payload any) {
	p, ok := payload.(*model.SessionEndedPayload)
	if !ok {
		return
	}
	c.mu.Lock()
	delete(c.sessions, p.SessionID)
	delete(c.typing, p.SessionID)
	c.mu.Unlock()
	c.render()
}

func (c *Console) handleError(payload any) {
	p, ok := payload.(*model.ErrorPayload)
	if !ok {
		return
	}
	if c.OnError != nil {
		c.OnError(errors.New(p.Message))
	}
}

func (c *Console) render() {
	if c.OnUpdate != nil {
		c.OnUpdate()
	}
}
