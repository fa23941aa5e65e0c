package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hearthdesk/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

// TicketRepo provides database operations for support tickets.
type TicketRepo struct {
	db *DB
}

// NewTicketRepo creates a TicketRepo.
func NewTicketRepo(db *DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// Create inserts a new ticket. The id, status and timestamps are filled
// in; the id is the correlation id the chat client binds to.
func (r *TicketRepo) Create(t *model.Ticket) error {
	if t.Status == "" {
		t.Status = model.TicketOpen
	}
	if err := t.Validate(); err != nil {
		return err
	}

	t.ID = uuid.New().String()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO tickets (id, user_id, user_role, category, subcategory, problem, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.UserRole, t.Category, t.Subcategory, t.Problem, t.Status, FormatTime(now), FormatTime(now))
	if err != nil {
		return fmt.Errorf("store: create ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket.
func (r *TicketRepo) GetByID(id string) (*model.Ticket, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, user_role, category, subcategory, problem, status, created_at, updated_at
		FROM tickets WHERE id = ?
	`, id)

	var t model.Ticket
	var created, updated string
	err := row.Scan(&t.ID, &t.UserID, &t.UserRole, &t.Category, &t.Subcategory, &t.Problem, &t.Status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ticket %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get ticket: %w", err)
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

// SetStatus updates a ticket's lifecycle state.
func (r *TicketRepo) SetStatus(id string, status model.TicketStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("store: invalid ticket status %q", status)
	}
	res, err := r.db.Exec(`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		status, FormatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: set ticket status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set ticket status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: ticket %s", ErrNotFound, id)
	}
	return nil
}

// AddMessage appends a message to a ticket thread.
func (r *TicketRepo) AddMessage(m *model.TicketMessage) error {
	if m.TicketID == "" || m.Content == "" {
		return fmt.Errorf("store: ticket message needs ticket id and content")
	}
	if !m.Role.IsValid() {
		return fmt.Errorf("store: invalid message role %q", m.Role)
	}
	if _, err := r.GetByID(m.TicketID); err != nil {
		return err
	}

	m.ID = uuid.New().String()
	m.CreatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO ticket_messages (id, ticket_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.TicketID, m.Role, m.Content, FormatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: add ticket message: %w", err)
	}

	if _, err := r.db.Exec(`UPDATE tickets SET updated_at = ? WHERE id = ?`,
		FormatTime(m.CreatedAt), m.TicketID); err != nil {
		return fmt.Errorf("store: touch ticket: %w", err)
	}
	return nil
}

// Messages lists a ticket's thread in insertion order.
func (r *TicketRepo) Messages(ticketID string) ([]model.TicketMessage, error) {
	rows, err := r.db.Query(`
		SELECT id, ticket_id, role, content, created_at
		FROM ticket_messages WHERE ticket_id = ? ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("store: list ticket messages: %w", err)
	}
	defer rows.Close()

	var out []model.TicketMessage
	for rows.Next() {
		var m model.TicketMessage
		var created string
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("store: scan ticket message: %w", err)
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddAttachment records file metadata on a ticket.
func (r *TicketRepo) AddAttachment(a *model.Attachment) error {
	if a.TicketID == "" || a.FileName == "" {
		return fmt.Errorf("store: attachment needs ticket id and file name")
	}
	if _, err := r.GetByID(a.TicketID); err != nil {
		return err
	}

	a.ID = uuid.New().String()
	a.CreatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO attachments (id, ticket_id, file_name, size_bytes, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.TicketID, a.FileName, a.SizeBytes, a.Path, FormatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: add attachment: %w", err)
	}
	return nil
}

// Attachments lists a ticket's attachments.
func (r *TicketRepo) Attachments(ticketID string) ([]model.Attachment, error) {
	rows, err := r.db.Query(`
		SELECT id, ticket_id, file_name, size_bytes, path, created_at
		FROM attachments WHERE ticket_id = ? ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("store: list attachments: %w", err)
	}
	defer rows.Close()

	var out []model.Attachment
	for rows.Next() {
		var a model.Attachment
		var created string
		if err := rows.Scan(&a.ID, &a.TicketID, &a.FileName, &a.SizeBytes, &a.Path, &created); err != nil {
			return nil, fmt.Errorf("store: scan attachment: %w", err)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
