package chat

import (
	"context"
	"strings"
	"sync"

	"hearthdesk/internal/model"
)

// Sender delivers an optimistically appended user message to the backend.
// A non-nil error rolls the append back.
type Sender func(ctx context.Context, msg model.Message) error

// Store is the append-only conversation log. Message order always equals
// invocation order; there is a single logical writer (the active widget)
// but the mutex keeps transport callbacks safe too.
type Store struct {
	mu       sync.Mutex
	messages []model.Message
}

// NewStore returns an empty conversation log.
func NewStore() *Store {
	return &Store{}
}

// Append adds msg to the end of the log. It always succeeds.
func (s *Store) Append(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// SendUserMessage appends a user message optimistically, then hands it to
// send. If send fails, the message is removed again and the store is left
// exactly as it was before the call.
func (s *Store) SendUserMessage(ctx context.Context, content string, send Sender) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}

	msg := model.NewMessage(model.RoleUser, content)
	s.Append(msg)

	if err := send(ctx, msg); err != nil {
		s.remove(msg.ID)
		return model.Message{}, err
	}
	return msg, nil
}

// Messages returns a copy of the log in insertion order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *Store) Last() (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Reset clears the log for a fresh conversation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// remove undoes one optimistic append by message id. Removal by id, not by
// position, so appends that landed while the send was in flight survive.
func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}
