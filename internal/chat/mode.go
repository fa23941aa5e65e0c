package chat

import (
	"fmt"
	"sync"
	"time"
)

// Mode says who owns the conversation right now.
//
//   - automated: the AI assistant answers user input
//   - agent-requested: a human was asked for; no assistant completions are
//     issued while waiting
//   - agent-active: a human agent has joined
//   - closed: terminal; a new conversation starts a fresh controller
type Mode string

const (
	ModeAutomated      Mode = "automated"
	ModeAgentRequested Mode = "agent-requested"
	ModeAgentActive    Mode = "agent-active"
	ModeClosed         Mode = "closed"
)

// legalTransitions enumerates every edge of the handoff state machine.
// Anything not listed is rejected.
var legalTransitions = map[Mode][]Mode{
	ModeAutomated:      {ModeAgentRequested, ModeClosed},
	ModeAgentRequested: {ModeAgentActive, ModeClosed},
	ModeAgentActive:    {ModeClosed},
}

// ModeController is the single source of truth for which responder owns
// the conversation. All transitions go through the guarded transition
// func; ad-hoc flag mutation is not possible from outside.
type ModeController struct {
	mu          sync.Mutex
	mode        Mode
	requestedAt time.Time
	everActive  bool
}

// NewModeController starts a conversation in automated mode.
func NewModeController() *ModeController {
	return &ModeController{mode: ModeAutomated}
}

// Mode returns the current mode.
func (c *ModeController) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// RequestAgent moves automated → agent-requested.
func (c *ModeController) RequestAgent() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeAgentRequested {
		return ErrAlreadyRequested
	}
	if err := c.transition(ModeAgentRequested); err != nil {
		return err
	}
	c.requestedAt = time.Now()
	return nil
}

// AgentJoined moves agent-requested → agent-active, on the backend event
// confirming a human has taken over.
func (c *ModeController) AgentJoined() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(ModeAgentActive); err != nil {
		return err
	}
	c.everActive = true
	return nil
}

// Close ends the conversation from any open mode.
func (c *ModeController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(ModeClosed)
}

// AllowAssistant reports whether new user input may trigger an assistant
// completion. Only true in automated mode: once a human was requested the
// log still grows but the assistant stays quiet.
func (c *ModeController) AllowAssistant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == ModeAutomated
}

// EverActive reports whether a human agent was ever part of this
// conversation; rating collection only happens when it was.
func (c *ModeController) EverActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.everActive
}

// RequestedAt returns when the agent request was made. There is no
// built-in join timeout; callers that want one can build it on this.
func (c *ModeController) RequestedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestedAt
}

func (c *ModeController) transition(to Mode) error {
	for _, next := range legalTransitions[c.mode] {
		if next == to {
			c.mode = to
			return nil
		}
	}
	if c.mode == ModeClosed {
		return fmt.Errorf("%w: %s -> %s: %w", ErrInvalidTransition, c.mode, to, ErrClosed)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.mode, to)
}
