package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeDecodeTyped(t *testing.T) {
	env, err := NewEnvelope(EventAgentRequest, AgentRequestPayload{
		UserID:   "user-1",
		UserName: "Dana",
		Reason:   "customer requested a human agent",
		Priority: PriorityHigh,
	})
	require.NoError(t, err)

	// Round-trip through the wire representation.
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var back Envelope
	require.NoError(t, json.Unmarshal(raw, &back))

	decoded, err := back.Decode()
	require.NoError(t, err)
	p, ok := decoded.(*AgentRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, PriorityHigh, p.Priority)
}

func TestEnvelopeDecodeNoPayloadEvents(t *testing.T) {
	for _, event := range []EventName{EventAgentGetQueue, EventAgentGetSessions} {
		decoded, err := Envelope{Event: event}.Decode()
		require.NoError(t, err)
		assert.Nil(t, decoded)
	}
}

func TestEnvelopeDecodeUnknownEvent(t *testing.T) {
	_, err := Envelope{Event: "made-up-event", Payload: json.RawMessage(`{}`)}.Decode()
	assert.ErrorContains(t, err, "unknown event")
}

func TestEnvelopeDecodeMalformedPayload(t *testing.T) {
	_, err := Envelope{Event: EventUserMessage, Payload: json.RawMessage(`"not an object"`)}.Decode()
	assert.Error(t, err)

	_, err = Envelope{Event: EventUserMessage}.Decode()
	assert.ErrorContains(t, err, "missing payload")
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(RoleAssistant, "hello")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, RoleAssistant, m.Role)
	assert.False(t, m.Timestamp.IsZero())

	other := NewMessage(RoleAssistant, "hello")
	assert.NotEqual(t, m.ID, other.ID)
}

func TestRoleAndPriorityValidity(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAgent.IsValid())
	assert.False(t, Role("robot").IsValid())

	assert.True(t, PriorityNormal.IsValid())
	assert.False(t, Priority("urgent").IsValid())

	assert.True(t, AgentOnline.IsValid())
	assert.False(t, AgentStatus("sleeping").IsValid())
}

func TestTicketValidate(t *testing.T) {
	ticket := Ticket{UserID: "u", Category: "billing", Problem: "p"}
	assert.NoError(t, ticket.Validate())

	assert.Error(t, (&Ticket{Category: "billing", Problem: "p"}).Validate())
	assert.Error(t, (&Ticket{UserID: "u", Problem: "p"}).Validate())
	assert.Error(t, (&Ticket{UserID: "u", Category: "billing"}).Validate())

	bad := ticket
	bad.Status = "weird"
	assert.Error(t, bad.Validate())
}

func TestRatingValidate(t *testing.T) {
	for score := 1; score <= 5; score++ {
		r := Rating{TargetID: "s", Kind: RatingSession, Score: score}
		assert.NoError(t, r.Validate())
	}
	assert.Error(t, (&Rating{TargetID: "s", Kind: RatingSession, Score: 0}).Validate())
	assert.Error(t, (&Rating{TargetID: "s", Kind: RatingSession, Score: 6}).Validate())
	assert.Error(t, (&Rating{Kind: RatingSession, Score: 3}).Validate())
	assert.Error(t, (&Rating{TargetID: "s", Kind: "bogus", Score: 3}).Validate())
}
