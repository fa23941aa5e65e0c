package model

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

// IsValid returns true if the status is a known ticket status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketOpen, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// Ticket is the server-side record created when a conversation enters the
// ticketed support flow. Its id is the correlation id the chat client binds
// to; it never changes for the lifetime of the conversation.
type Ticket struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	UserRole    string       `json:"user_role"`
	Category    string       `json:"category"`
	Subcategory string       `json:"subcategory"`
	Problem     string       `json:"problem"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks the fields the backend requires before a ticket can be
// created.
func (t *Ticket) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("ticket: user id is required")
	}
	if t.Category == "" {
		return fmt.Errorf("ticket: category is required")
	}
	if t.Problem == "" {
		return fmt.Errorf("ticket: problem description is required")
	}
	if t.Status != "" && !t.Status.IsValid() {
		return fmt.Errorf("ticket: invalid status %q", t.Status)
	}
	return nil
}

// TicketMessage is one message on a ticket thread.
type TicketMessage struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is file metadata attached to a ticket; the blob itself lives
// on disk under the configured upload directory.
type Attachment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingKind says what a rating refers to.
type RatingKind string

const (
	RatingSession RatingKind = "session"
	RatingTicket  RatingKind = "ticket"
)

// IsValid returns true if the kind is a known rating kind.
func (k RatingKind) IsValid() bool {
	return k == RatingSession || k == RatingTicket
}

// Rating is post-session feedback on a 1-5 scale.
type Rating struct {
	ID        string     `json:"id"`
	TargetID  string     `json:"target_id"`
	Kind      RatingKind `json:"kind"`
	Score     int        `json:"rating"`
	Feedback  string     `json:"feedback,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate rejects out-of-scale scores and unknown kinds. A zero score is
// not a rating.
func (r *Rating) Validate() error {
	if r.TargetID == "" {
		return fmt.Errorf("rating: target id is required")
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("rating: invalid kind %q", r.Kind)
	}
	if r.Score < 1 || r.Score > 5 {
		return fmt.Errorf("rating: score must be between 1 and 5, got %d", r.Score)
	}
	return nil
}
