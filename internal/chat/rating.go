package chat

import (
	"context"
	"sync"

	"hearthdesk/internal/model"
)

// RatingSubmitter delivers a completed rating to the backend.
type RatingSubmitter func(ctx context.Context, rating model.Rating) error

// Collector captures post-session feedback exactly once. It is armed when
// the conversation closes after a human agent was involved, and reports
// completion (submit or skip) so the session can reset.
type Collector struct {
	mu         sync.Mutex
	armed      bool
	done       bool
	inFlight   bool
	targetID   string
	kind       model.RatingKind
	submit     RatingSubmitter
	onComplete func()
}

// NewCollector wires the collector to its submit call and completion hook.
func NewCollector(submit RatingSubmitter, onComplete func()) *Collector {
	return &Collector{submit: submit, onComplete: onComplete}
}

// Arm makes the rating prompt pending for the given session or ticket.
// Arming an already completed collector does nothing.
func (c *Collector) Arm(targetID string, kind model.RatingKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.armed = true
	c.targetID = targetID
	c.kind = kind
}

// Pending reports whether the prompt should be visible.
func (c *Collector) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed && !c.done
}

// Submit validates and sends the rating. A score outside 1-5 is rejected
// locally before any network call. On success the completion hook fires.
func (c *Collector) Submit(ctx context.Context, score int, feedback string) error {
	c.mu.Lock()
	if !c.armed || c.done || c.inFlight {
		c.mu.Unlock()
		return ErrRatingDone
	}
	if score < 1 || score > 5 {
		c.mu.Unlock()
		return ErrZeroRating
	}
	// Claim the submission before releasing the lock so a second Submit
	// racing the network call cannot double-send.
	c.inFlight = true
	rating := model.Rating{
		TargetID: c.targetID,
		Kind:     c.kind,
		Score:    score,
		Feedback: feedback,
	}
	c.mu.Unlock()

	if c.submit != nil {
		if err := c.submit(ctx, rating); err != nil {
			c.mu.Lock()
			c.inFlight = false
			c.mu.Unlock()
			return err
		}
	}
	c.complete()
	return nil
}

// Skip dismisses the prompt without sending anything. Always allowed.
func (c *Collector) Skip() {
	c.mu.Lock()
	if !c.armed || c.done || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.complete()
}

func (c *Collector) complete() {
	c.mu.Lock()
	c.done = true
	c.armed = false
	c.inFlight = false
	c.mu.Unlock()
	if c.onComplete != nil {
		c.onComplete()
	}
}
