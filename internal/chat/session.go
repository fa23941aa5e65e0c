package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hearthdesk/internal/model"
)

// UserInfo identifies the customer behind the widget.
type UserInfo struct {
	ID    string
	Name  string
	Email string
}

// Assistant answers automated questions, with the conversation so far and
// the page the customer is on as context.
type Assistant interface {
	Ask(ctx context.Context, question string, history []model.Message, page string) (Answer, error)
}

const defaultWelcome = "Hi! I'm your property assistant. Ask me anything about listings, offers or your account."

// SessionConfig wires a Session to its collaborators. Transport and
// Assistant are required; Requester defaults to emitting agent-request on
// the transport, Rater to a local no-op.
type SessionConfig struct {
	Transport Transport
	Assistant Assistant
	Requester AgentRequester
	Rater     RatingSubmitter
	User      UserInfo
	Page      string
	Welcome   string

	// UI hooks. OnTyping covers the assistant wait, OnAgentTyping the
	// human agent's indicator, OnError the toast surface.
	OnTyping      func(bool)
	OnAgentTyping func(bool)
	OnError       func(error)
}

// Session is one customer conversation: the store, the handoff state
// machine, the session binder, escalation and rating, driven by UI calls
// on one side and transport events on the other. After a close and rating
// the session resets in place to a fresh conversation.
type Session struct {
	cfg   SessionConfig
	store *Store

	mu     sync.Mutex
	mode   *ModeController
	binder *Binder
	esc    *Escalation
	rating *Collector
	epoch  int

	offs []func()
}

// NewSession creates a fresh conversation with the local welcome message
// already in the log.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("chat: session needs a transport")
	}
	if cfg.Assistant == nil {
		return nil, fmt.Errorf("chat: session needs an assistant")
	}
	if cfg.Welcome == "" {
		cfg.Welcome = defaultWelcome
	}

	s := &Session{cfg: cfg, store: NewStore()}
	if cfg.Requester == nil {
		s.cfg.Requester = s.emitAgentRequest
	}
	s.freshState()
	return s, nil
}

// Start subscribes the session to its transport events. Every
// subscription is undone by Stop; Start after Stop re-subscribes.
func (s *Session) Start() {
	t := s.cfg.Transport
	s.offs = []func(){
		t.On(model.EventAgentJoined, s.handleAgentJoined),
		t.On(model.EventAgentMessage, s.handleAgentMessage),
		t.On(model.EventAgentTypingOut, s.handleAgentTyping),
		t.On(model.EventSessionEnded, s.handleSessionEnded),
		t.On(model.EventError, s.handleError),
	}
}

// Stop removes every handler Start registered.
func (s *Session) Stop() {
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
}

// Send routes user input according to the current mode: automated mode
// asks the assistant, agent-requested only logs (a human is expected to
// take over), agent-active relays to the bound session.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	mode := s.mode.Mode()
	esc := s.esc
	binder := s.binder
	epoch := s.epoch
	s.mu.Unlock()

	switch mode {
	case ModeClosed:
		return ErrClosed

	case ModeAutomated:
		return s.askAssistant(ctx, content, esc, epoch)

	case ModeAgentRequested:
		_, err := s.store.SendUserMessage(ctx, content, func(context.Context, model.Message) error {
			return nil
		})
		return err

	case ModeAgentActive:
		id, ok := binder.ID()
		if !ok {
			return ErrUnbound
		}
		_, err := s.store.SendUserMessage(ctx, content, func(_ context.Context, msg model.Message) error {
			return s.cfg.Transport.Emit(model.EventUserMessage, model.UserMessagePayload{
				SessionID: id,
				Message:   msg,
			})
		})
		return err
	}
	return fmt.Errorf("chat: unknown mode %q", mode)
}

func (s *Session) askAssistant(ctx context.Context, content string, esc *Escalation, epoch int) error {
	var ans Answer
	s.typing(true)
	_, err := s.store.SendUserMessage(ctx, content, func(ctx context.Context, _ model.Message) error {
		var askErr error
		ans, askErr = s.cfg.Assistant.Ask(ctx, content, s.store.Messages(), s.cfg.Page)
		return askErr
	})
	s.typing(false)
	if err != nil {
		return err
	}

	// A late answer that resolved after a reset belongs to a conversation
	// that no longer exists.
	s.mu.Lock()
	stale := epoch != s.epoch
	s.mu.Unlock()
	if stale {
		return nil
	}

	s.store.Append(model.NewMessage(model.RoleAssistant, ans.Text))
	if _, err := esc.OnAnswer(ctx, ans); err != nil {
		s.surface(err)
	}
	return nil
}

// RequestAgent escalates on explicit user action.
func (s *Session) RequestAgent(ctx context.Context, reason string) error {
	s.mu.Lock()
	esc := s.esc
	s.mu.Unlock()
	return esc.UserRequested(ctx, reason)
}

// EndChat closes the conversation from the user's side. If a human agent
// was involved the rating prompt becomes pending; otherwise the widget
// resets straight away (no session id ever existed, nothing to correlate).
func (s *Session) EndChat(ctx context.Context) error {
	s.mu.Lock()
	mode := s.mode
	binder := s.binder
	rating := s.rating
	s.mu.Unlock()

	switch mode.Mode() {
	case ModeAgentActive:
		if id, ok := binder.ID(); ok {
			if err := s.cfg.Transport.Emit(model.EventUserEndSession, model.EndSessionPayload{SessionID: id}); err != nil {
				s.surface(err)
			}
		}
	case ModeAgentRequested:
		// No session exists yet, but the hub holds a queue item that
		// must be withdrawn or it would dangle until some agent accepts
		// a conversation the customer already abandoned.
		if err := s.cfg.Transport.Emit(model.EventUserEndSession, model.EndSessionPayload{}); err != nil {
			s.surface(err)
		}
	}
	if err := mode.Close(); err != nil {
		return err
	}
	if mode.EverActive() {
		id, _ := binder.ID()
		rating.Arm(id, model.RatingSession)
		return nil
	}
	s.Reset()
	return nil
}

// Rating exposes the collector so the UI can submit or skip the prompt.
func (s *Session) Rating() *Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rating
}

// Reset discards the conversation and starts a fresh one: new log, new
// welcome message, new state machine. The old mode controller is never
// reused.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.freshState()
}

// Messages returns the conversation log.
func (s *Session) Messages() []model.Message {
	return s.store.Messages()
}

// Mode returns the current handoff mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode.Mode()
}

// SessionID returns the bound backend session id, if one exists yet.
func (s *Session) SessionID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binder.ID()
}

// freshState resets store and controllers. Caller holds s.mu (or is the
// constructor).
func (s *Session) freshState() {
	s.store.Reset()
	s.mode = NewModeController()
	s.binder = NewBinder()
	s.esc = NewEscalation(s.mode, s.store, s.cfg.Requester)
	s.rating = NewCollector(s.cfg.Rater, s.Reset)
	s.store.Append(model.NewMessage(model.RoleAssistant, s.cfg.Welcome))
}

func (s *Session) emitAgentRequest(_ context.Context, history []model.Message, reason string) error {
	return s.cfg.Transport.Emit(model.EventAgentRequest, model.AgentRequestPayload{
		UserID:    s.cfg.User.ID,
		UserName:  s.cfg.User.Name,
		UserEmail: s.cfg.User.Email,
		History:   history,
		Reason:    reason,
		Priority:  model.PriorityNormal,
	})
}

func (s *Session) handleAgentJoined(payload any) {
	p, ok := payload.(*model.AgentJoinedPayload)
	if !ok || p.UserID != s.cfg.User.ID {
		return
	}

	s.mu.Lock()
	binder := s.binder
	mode := s.mode
	s.mu.Unlock()

	// The transition guard doubles as the staleness check: a join for a
	// conversation that was since reset or closed fails here and never
	// binds, so old session events cannot leak into a fresh log.
	if err := mode.AgentJoined(); err != nil {
		return
	}
	if err := binder.Bind(p.SessionID); err != nil {
		s.surface(err)
		return
	}
	announce := p.Message
	if announce == "" {
		announce = p.AgentName + " has joined the conversation"
	}
	s.store.Append(model.NewMessage(model.RoleSystem, announce))
}

func (s *Session) handleAgentMessage(payload any) {
	p, ok := payload.(*model.SessionMessagePayload)
	if !ok {
		return
	}
	s.mu.Lock()
	id, bound := s.binder.ID()
	s.mu.Unlock()
	if !bound || p.SessionID != id {
		return
	}
	// Delivery order, no dedup layer.
	s.store.Append(p.Message)
}

func (s *Session) handleAgentTyping(payload any) {
	p, ok := payload.(*model.TypingPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	id, bound := s.binder.ID()
	s.mu.Unlock()
	if !bound || p.SessionID != id {
		return
	}
	if s.cfg.OnAgentTyping != nil {
		s.cfg.OnAgentTyping(p.IsTyping)
	}
}

func (s *Session) handleSessionEnded(payload any) {
	p, ok := payload.(*model.SessionEndedPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	mode := s.mode
	binder := s.binder
	rating := s.rating
	s.mu.Unlock()

	id, bound := binder.ID()
	if !bound || p.SessionID != id {
		return
	}
	if mode.Mode() == ModeClosed {
		return
	}
	if err := mode.Close(); err != nil {
		s.surface(err)
		return
	}
	if mode.EverActive() {
		rating.Arm(id, model.RatingSession)
	} else {
		s.Reset()
	}
}

func (s *Session) handleError(payload any) {
	p, ok := payload.(*model.ErrorPayload)
	if !ok {
		return
	}
	s.surface(errors.New(p.Message))
}

func (s *Session) typing(on bool) {
	if s.cfg.OnTyping != nil {
		s.cfg.OnTyping(on)
	}
}

func (s *Session) surface(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
