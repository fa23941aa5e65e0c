package chat

import (
	"context"
	"fmt"

	"hearthdesk/internal/model"
)

// Answer is what the assistant backend returns for one question. Escalate
// is computed server-side; the client never second-guesses it.
type Answer struct {
	Text     string
	Escalate bool
}

// AgentRequester issues the human-agent request with the accumulated
// conversation history and a reason string for the receiving agent.
type AgentRequester func(ctx context.Context, history []model.Message, reason string) error

// Escalation decides when the conversation moves from automated to
// human-assisted mode: either the assistant's answer carries the
// escalation flag, or the user explicitly asks for a human.
type Escalation struct {
	mode    *ModeController
	store   *Store
	request AgentRequester
}

// NewEscalation wires the policy to the mode controller and log it acts on.
func NewEscalation(mode *ModeController, store *Store, request AgentRequester) *Escalation {
	return &Escalation{mode: mode, store: store, request: request}
}

// OnAnswer inspects an assistant answer and escalates when the server
// flagged it. Returns true if the conversation moved to agent-requested.
func (e *Escalation) OnAnswer(ctx context.Context, ans Answer) (bool, error) {
	if !ans.Escalate {
		return false, nil
	}
	if err := e.trigger(ctx, "assistant escalation"); err != nil {
		return false, err
	}
	return true, nil
}

// UserRequested escalates on an explicit "talk to a human" action.
func (e *Escalation) UserRequested(ctx context.Context, reason string) error {
	if reason == "" {
		reason = "customer requested a human agent"
	}
	return e.trigger(ctx, reason)
}

func (e *Escalation) trigger(ctx context.Context, reason string) error {
	if err := e.mode.RequestAgent(); err != nil {
		return err
	}
	if err := e.request(ctx, e.store.Messages(), reason); err != nil {
		return fmt.Errorf("chat: agent request: %w", err)
	}
	return nil
}
