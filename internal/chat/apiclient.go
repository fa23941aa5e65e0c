package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"hearthdesk/internal/model"
)

// APIClient talks to the hearthdesk REST backend on behalf of the widget:
// assistant questions, agent requests, tickets and ratings. It satisfies
// the Assistant interface so a Session can be wired straight to it.
type APIClient struct {
	baseURL string
	user    UserInfo
	page    string
	http    *http.Client
}

// APIClientConfig configures an APIClient. BaseURL is required.
type APIClientConfig struct {
	BaseURL string
	User    UserInfo
	Page    string
	Timeout time.Duration
}

// NewAPIClient creates a client for the REST backend.
func NewAPIClient(cfg APIClientConfig) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat: api base url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: cfg.BaseURL,
		user:    cfg.User,
		page:    cfg.Page,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

var _ Assistant = (*APIClient)(nil)

type askRequest struct {
	UserID   string          `json:"user_id"`
	Question string          `json:"question"`
	History  []model.Message `json:"history,omitempty"`
	Page     string          `json:"page,omitempty"`
}

type askResponse struct {
	Answer   string `json:"answer"`
	Escalate bool   `json:"escalate"`
}

// Ask sends a question to the assistant endpoint. The escalation decision
// comes back with the answer; the client does not second-guess it.
func (c *APIClient) Ask(ctx context.Context, question string, history []model.Message, page string) (Answer, error) {
	req := askRequest{UserID: c.user.ID, Question: question, History: history, Page: page}
	var resp askResponse
	if err := c.post(ctx, "/api/v1/assistant/ask", req, &resp); err != nil {
		return Answer{}, err
	}
	return Answer{Text: resp.Answer, Escalate: resp.Escalate}, nil
}

type agentRequestBody struct {
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name,omitempty"`
	UserEmail string          `json:"user_email,omitempty"`
	History   []model.Message `json:"history,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// RequestAgent asks the backend to queue this conversation for a human
// agent. The Session uses it as its AgentRequester when the widget runs
// over REST instead of raising agent-request on the socket.
func (c *APIClient) RequestAgent(ctx context.Context, history []model.Message, reason string) error {
	body := agentRequestBody{
		UserID:    c.user.ID,
		UserName:  c.user.Name,
		UserEmail: c.user.Email,
		History:   history,
		Reason:    reason,
	}
	return c.post(ctx, "/api/v1/agent-requests", body, nil)
}

// SubmitRating delivers a completed rating. Wired as the Session's
// RatingSubmitter.
func (c *APIClient) SubmitRating(ctx context.Context, rating model.Rating) error {
	return c.post(ctx, "/api/v1/ratings", rating, nil)
}

// CreateTicket opens a support ticket and returns it with the server-side
// id filled in.
func (c *APIClient) CreateTicket(ctx context.Context, t model.Ticket) (*model.Ticket, error) {
	if t.UserID == "" {
		t.UserID = c.user.ID
	}
	var created model.Ticket
	if err := c.post(ctx, "/api/v1/tickets", t, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddTicketMessage appends a message to a ticket thread.
func (c *APIClient) AddTicketMessage(ctx context.Context, ticketID string, content string) (*model.TicketMessage, error) {
	body := model.TicketMessage{TicketID: ticketID, Role: model.RoleUser, Content: content}
	var created model.TicketMessage
	if err := c.post(ctx, "/api/v1/tickets/"+ticketID+"/messages", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UploadAttachment streams a file to a ticket as a multipart upload.
func (c *APIClient) UploadAttachment(ctx context.Context, ticketID, fileName string, r io.Reader) (*model.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("chat: build upload: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("chat: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("chat: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/tickets/"+ticketID+"/attachments", &buf)
	if err != nil {
		return nil, fmt.Errorf("chat: upload attachment: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created model.Attachment
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *APIClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("chat: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

type apiError struct {
	Message string `json:"message"`
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("chat: %s %s: %s", req.Method, req.URL.Path, apiErr.Message)
		}
		return fmt.Errorf("chat: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chat: decode response: %w", err)
	}
	return nil
}
