package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearthdesk/internal/model"
)

func newTestSession(t *testing.T, ft *fakeTransport, fa *fakeAssistant) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Transport: ft,
		Assistant: fa,
		User:      UserInfo{ID: "user-1", Name: "Maya", Email: "maya@example.com"},
		Page:      "/listings/42",
	})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestSessionOpensWithWelcomeMessage(t *testing.T) {
	s := newTestSession(t, newFakeTransport(), &fakeAssistant{})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.NotEmpty(t, msgs[0].Content)
	assert.Equal(t, ModeAutomated, s.Mode())
}

func TestSessionAutomatedQuestion(t *testing.T) {
	fa := &fakeAssistant{answers: []Answer{{Text: "Use the listing wizard under Sell."}}}
	s := newTestSession(t, newFakeTransport(), fa)

	require.NoError(t, s.Send(context.Background(), "How do I list a property?"))

	msgs := s.Messages()
	require.Len(t, msgs, 3, "welcome + user + assistant")
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "How do I list a property?", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Use the listing wizard under Sell.", msgs[2].Content)
	assert.Equal(t, ModeAutomated, s.Mode())
}

func TestSessionAssistantFailureRollsBack(t *testing.T) {
	fa := &fakeAssistant{err: errors.New("upstream timeout")}
	var typing []bool
	s, err := NewSession(SessionConfig{
		Transport: newFakeTransport(),
		Assistant: fa,
		OnTyping:  func(on bool) { typing = append(typing, on) },
	})
	require.NoError(t, err)

	err = s.Send(context.Background(), "hello?")
	require.Error(t, err)
	assert.Len(t, s.Messages(), 1, "only the welcome message survives")
	assert.Equal(t, []bool{true, false}, typing, "typing indicator cleared on failure")
}

func TestSessionUserRequestsAgent(t *testing.T) {
	ft := newFakeTransport()
	fa := &fakeAssistant{answers: []Answer{{Text: "irrelevant"}}}
	s := newTestSession(t, ft, fa)

	require.NoError(t, s.Send(context.Background(), "what are your fees?"))
	require.NoError(t, s.RequestAgent(context.Background(), "fee dispute"))
	assert.Equal(t, ModeAgentRequested, s.Mode())

	reqs := ft.emitted(model.EventAgentRequest)
	require.Len(t, reqs, 1)
	p, ok := reqs[0].payload.(model.AgentRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "fee dispute", p.Reason)
	assert.Len(t, p.History, 3, "request carries the accumulated history")

	// New input is logged, but no assistant completion is issued.
	asked := fa.askCount()
	require.NoError(t, s.Send(context.Background(), "anyone there?"))
	assert.Equal(t, asked, fa.askCount())
	last := s.Messages()[len(s.Messages())-1]
	assert.Equal(t, "anyone there?", last.Content)
}

func TestSessionEscalationFlag(t *testing.T) {
	ft := newFakeTransport()
	fa := &fakeAssistant{answers: []Answer{{Text: "Let me get a human for that.", Escalate: true}}}
	s := newTestSession(t, ft, fa)

	require.NoError(t, s.Send(context.Background(), "I want to cancel my contract"))
	assert.Equal(t, ModeAgentRequested, s.Mode())
	require.Len(t, ft.emitted(model.EventAgentRequest), 1)
}

func TestSessionAgentJoins(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))

	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID:    "user-1",
		AgentID:   "agent-9",
		AgentName: "Sam",
		SessionID: "sess-77",
	})

	assert.Equal(t, ModeAgentActive, s.Mode())
	id, ok := s.SessionID()
	require.True(t, ok)
	assert.Equal(t, "sess-77", id)

	last := s.Messages()[len(s.Messages())-1]
	assert.Equal(t, model.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Sam")
}

func TestSessionIgnoresJoinForOtherUser(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))

	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID:    "someone-else",
		AgentName: "Sam",
		SessionID: "sess-1",
	})
	assert.Equal(t, ModeAgentRequested, s.Mode())
}

func TestSessionAgentActiveMessaging(t *testing.T) {
	ft := newFakeTransport()
	fa := &fakeAssistant{}
	s := newTestSession(t, ft, fa)
	require.NoError(t, s.RequestAgent(context.Background(), ""))
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentName: "Sam", SessionID: "sess-77",
	})

	require.NoError(t, s.Send(context.Background(), "thanks Sam"))
	sent := ft.emitted(model.EventUserMessage)
	require.Len(t, sent, 1)
	p := sent[0].payload.(model.UserMessagePayload)
	assert.Equal(t, "sess-77", p.SessionID)
	assert.Equal(t, "thanks Sam", p.Message.Content)
	assert.Equal(t, 0, fa.askCount(), "assistant stays out of agent-active conversations")

	ft.deliver(t, model.EventAgentMessage, model.SessionMessagePayload{
		SessionID: "sess-77",
		Message:   model.NewMessage(model.RoleAgent, "happy to help"),
	})
	last := s.Messages()[len(s.Messages())-1]
	assert.Equal(t, model.RoleAgent, last.Role)

	// Messages for a different session never reach this log.
	before := len(s.Messages())
	ft.deliver(t, model.EventAgentMessage, model.SessionMessagePayload{
		SessionID: "sess-other",
		Message:   model.NewMessage(model.RoleAgent, "wrong room"),
	})
	assert.Len(t, s.Messages(), before)
}

func TestSessionAgentSendFailureRollsBack(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentName: "Sam", SessionID: "sess-77",
	})
	before := len(s.Messages())

	ft.failEmit[model.EventUserMessage] = errors.New("socket closed")
	err := s.Send(context.Background(), "lost words")
	require.Error(t, err)
	assert.Len(t, s.Messages(), before, "optimistic append rolled back")
}

func TestSessionEndedTriggersRatingThenReset(t *testing.T) {
	ft := newFakeTransport()
	var submitted model.Rating
	s, err := NewSession(SessionConfig{
		Transport: ft,
		Assistant: &fakeAssistant{},
		User:      UserInfo{ID: "user-1"},
		Rater: func(_ context.Context, r model.Rating) error {
			submitted = r
			return nil
		},
	})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	require.NoError(t, s.RequestAgent(context.Background(), ""))
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentName: "Sam", SessionID: "sess-77",
	})
	ft.deliver(t, model.EventSessionEnded, model.SessionEndedPayload{SessionID: "sess-77", Resolved: true})

	assert.Equal(t, ModeClosed, s.Mode())
	require.True(t, s.Rating().Pending(), "rating prompt visible after an agent session ends")

	require.NoError(t, s.Rating().Submit(context.Background(), 4, "sorted it out"))
	assert.Equal(t, 4, submitted.Score)
	assert.Equal(t, "sess-77", submitted.TargetID)

	// Completion resets the widget to a fresh conversation.
	assert.Equal(t, ModeAutomated, s.Mode())
	assert.Len(t, s.Messages(), 1)
	_, bound := s.SessionID()
	assert.False(t, bound)
}

func TestSessionEndChatWithoutAgentResetsImmediately(t *testing.T) {
	ft := newFakeTransport()
	fa := &fakeAssistant{answers: []Answer{{Text: "sure"}}}
	s := newTestSession(t, ft, fa)
	require.NoError(t, s.Send(context.Background(), "hi"))

	require.NoError(t, s.EndChat(context.Background()))
	// No agent was ever involved: no rating, no server correlation, just reset.
	assert.False(t, s.Rating().Pending())
	assert.Equal(t, ModeAutomated, s.Mode())
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, ft.emitted(model.EventUserEndSession))
}

func TestSessionEndChatWhileAgentActive(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentName: "Sam", SessionID: "sess-77",
	})

	require.NoError(t, s.EndChat(context.Background()))
	require.Len(t, ft.emitted(model.EventUserEndSession), 1)
	assert.Equal(t, ModeClosed, s.Mode())
	assert.True(t, s.Rating().Pending())
}

func TestSessionEndChatWhileWaitingWithdrawsRequest(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))

	require.NoError(t, s.EndChat(context.Background()))
	// The backend still holds a queue item; it must be told to drop it.
	ends := ft.emitted(model.EventUserEndSession)
	require.Len(t, ends, 1)
	p, ok := ends[0].payload.(model.EndSessionPayload)
	require.True(t, ok)
	assert.Empty(t, p.SessionID, "no session was ever assigned")

	// No agent was ever active: no rating, immediate reset.
	assert.False(t, s.Rating().Pending())
	assert.Equal(t, ModeAutomated, s.Mode())
}

func TestSessionStaleJoinAfterResetDoesNotBind(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))
	require.NoError(t, s.EndChat(context.Background()))
	require.Equal(t, ModeAutomated, s.Mode())

	// The abandoned request is accepted by an agent anyway; the fresh
	// conversation must not adopt the dead session.
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentID: "agent-9", AgentName: "Sam", SessionID: "stale-sess",
	})
	assert.Equal(t, ModeAutomated, s.Mode())
	_, bound := s.SessionID()
	assert.False(t, bound)

	// Nor may the dead session's messages leak into the fresh log.
	ft.deliver(t, model.EventAgentMessage, model.SessionMessagePayload{
		SessionID: "stale-sess",
		Message:   model.NewMessage(model.RoleAgent, "are you still there?"),
	})
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
}

func TestSessionStaleAnswerDroppedAfterReset(t *testing.T) {
	ft := newFakeTransport()
	fa := &fakeAssistant{answers: []Answer{{Text: "from a past life"}}}
	s := newTestSession(t, ft, fa)
	fa.onAsk = s.Reset

	require.NoError(t, s.Send(context.Background(), "hello"))

	// The reset happened while the request was in flight; the answer must
	// not leak into the fresh conversation.
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.NotEqual(t, "from a past life", msgs[0].Content)
}

func TestSessionSendAfterClose(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft, &fakeAssistant{})
	require.NoError(t, s.RequestAgent(context.Background(), ""))
	ft.deliver(t, model.EventAgentJoined, model.AgentJoinedPayload{
		UserID: "user-1", AgentName: "Sam", SessionID: "sess-77",
	})
	ft.deliver(t, model.EventSessionEnded, model.SessionEndedPayload{SessionID: "sess-77"})

	assert.ErrorIs(t, s.Send(context.Background(), "too late"), ErrClosed)
}

func TestSessionStopUnsubscribes(t *testing.T) {
	ft := newFakeTransport()
	s, err := NewSession(SessionConfig{Transport: ft, Assistant: &fakeAssistant{}})
	require.NoError(t, err)

	s.Start()
	assert.Equal(t, 1, ft.handlerCount(model.EventAgentJoined))
	s.Stop()
	assert.Equal(t, 0, ft.handlerCount(model.EventAgentJoined))

	// A remount never stacks a second handler for the same event.
	s.Start()
	assert.Equal(t, 1, ft.handlerCount(model.EventAgentJoined))
	s.Stop()
}
