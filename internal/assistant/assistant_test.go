package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hearthdesk/internal/model"
)

func TestParseAnswerWithoutMarker(t *testing.T) {
	r := parseAnswer("List your property from the Sell tab.")
	assert.Equal(t, "List your property from the Sell tab.", r.Answer)
	assert.False(t, r.Escalate)
}

func TestParseAnswerStripsHandoffMarker(t *testing.T) {
	r := parseAnswer("I'll connect you with our team.\n" + handoffMarker)
	assert.Equal(t, "I'll connect you with our team.", r.Answer)
	assert.True(t, r.Escalate)
	assert.NotContains(t, r.Answer, handoffMarker)
}

func TestBuildPromptIncludesContext(t *testing.T) {
	history := []model.Message{
		model.NewMessage(model.RoleUser, "what are listing fees?"),
		model.NewMessage(model.RoleAssistant, "Listing is free for private sellers."),
	}
	prompt := buildPrompt("and for agencies?", history, "/pricing")

	assert.Contains(t, prompt, "/pricing")
	assert.Contains(t, prompt, "what are listing fees?")
	assert.Contains(t, prompt, "and for agencies?")
	assert.Contains(t, prompt, handoffMarker)
}

func TestBuildPromptWindowsLongHistory(t *testing.T) {
	var history []model.Message
	for i := 0; i < historyWindow+10; i++ {
		history = append(history, model.NewMessage(model.RoleUser, "msg-"+strings.Repeat("x", i%3)))
	}
	history[0].Content = "the-very-first-message"
	prompt := buildPrompt("q", history, "")
	assert.NotContains(t, prompt, "the-very-first-message")
}
