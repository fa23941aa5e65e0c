// Package assistant answers customer questions with the marketplace
// assistant model and computes the escalation flag the chat client acts
// on.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"hearthdesk/internal/model"
)

// handoffMarker is the token the model is asked to end its reply with
// when a human should take over. It is stripped from the answer before it
// reaches the customer.
const handoffMarker = "[[HANDOFF]]"

// historyWindow caps how much conversation is replayed into the prompt.
const historyWindow = 20

// Result is one answered question: the reply text plus the server-side
// escalation decision.
type Result struct {
	Answer   string `json:"answer"`
	Escalate bool   `json:"escalate"`
}

// Config holds the model access settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Service answers questions against the configured model.
type Service struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// New creates an assistant service.
func New(cfg Config) *Service {
	m := openai.ChatModelGPT4o
	if cfg.Model != "" {
		m = openai.ChatModel(cfg.Model)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   m,
		timeout: timeout,
	}
}

// Ask answers one question with the conversation so far and the page the
// customer is on as context. Failures bubble up; the caller surfaces them
// and rolls the optimistic message back.
func (s *Service) Ask(ctx context.Context, question string, history []model.Message, page string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildPrompt(question, history, page)

	resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: s.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("assistant: %w", err)
	}

	answer := strings.TrimSpace(resp.OutputText())
	if answer == "" {
		return Result{}, fmt.Errorf("assistant: empty answer")
	}
	return parseAnswer(answer), nil
}

// ── Prompt construction ──────────────────────────────────────────────────────

func buildPrompt(question string, history []model.Message, page string) string {
	var sb strings.Builder

	sb.WriteString(`You are the support assistant of a real-estate marketplace. `)
	sb.WriteString(`You help buyers, sellers and agents with listings, offers, viewings, contracts, KYC and account questions. `)
	sb.WriteString(`Be accurate, warm and concise, and respond in the language the customer writes in. `)
	sb.WriteString(`Do not fabricate marketplace policy you are not sure about.` + "\n\n")

	sb.WriteString("If the customer asks for a human, is upset, or raises something you cannot resolve ")
	sb.WriteString("(legal disputes, payments gone wrong, account verification failures), ")
	sb.WriteString(fmt.Sprintf("finish your reply with the exact token %s on its own.\n\n", handoffMarker))

	if page != "" {
		sb.WriteString(fmt.Sprintf("The customer is currently on the page: %s\n\n", page))
	}

	if len(history) > 0 {
		window := history
		if len(window) > historyWindow {
			window = window[len(window)-historyWindow:]
		}
		sb.WriteString("--- CONVERSATION SO FAR ---\n")
		for _, msg := range window {
			sb.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
		}
		sb.WriteString("--- END CONVERSATION ---\n\n")
	}

	sb.WriteString(fmt.Sprintf("Customer question: %s\n", question))
	sb.WriteString("\nAnswer the customer:")
	return sb.String()
}

// parseAnswer strips the handoff marker and turns it into the escalation
// flag.
func parseAnswer(answer string) Result {
	if !strings.Contains(answer, handoffMarker) {
		return Result{Answer: answer}
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(answer, handoffMarker, ""))
	return Result{Answer: cleaned, Escalate: true}
}
