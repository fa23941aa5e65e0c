package chat

import (
	"fmt"
	"sync"
)

// Binder owns the mapping from the local conversation to the backend's
// session or ticket id. The transition is one-way: unbound → bound(id),
// at most once per conversation; the id is immutable after binding.
type Binder struct {
	mu sync.Mutex
	id string
}

// NewBinder returns an unbound binder.
func NewBinder() *Binder {
	return &Binder{}
}

// Bind fixes the session id for the remainder of the conversation.
// Re-binding the same id is a no-op; a different id is an error.
func (b *Binder) Bind(id string) error {
	if id == "" {
		return fmt.Errorf("chat: bind: empty session id")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.id {
	case "":
		b.id = id
		return nil
	case id:
		return nil
	default:
		return fmt.Errorf("%w: have %s, got %s", ErrAlreadyBound, b.id, id)
	}
}

// ID returns the bound session id, or false while unbound.
func (b *Binder) ID() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id, b.id != ""
}

// Bound reports whether a session id exists. Agent-directed sends are not
// permitted before it does.
func (b *Binder) Bound() bool {
	_, ok := b.ID()
	return ok
}
