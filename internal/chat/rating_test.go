package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearthdesk/internal/model"
)

func TestRatingZeroRejectedBeforeNetwork(t *testing.T) {
	calls := 0
	c := NewCollector(func(context.Context, model.Rating) error {
		calls++
		return nil
	}, nil)
	c.Arm("sess-1", model.RatingSession)

	err := c.Submit(context.Background(), 0, "")
	assert.ErrorIs(t, err, ErrZeroRating)
	assert.Equal(t, 0, calls, "no network call for a zero rating")
	assert.True(t, c.Pending(), "prompt stays pending after local rejection")
}

func TestRatingSubmit(t *testing.T) {
	var got model.Rating
	reset := false
	c := NewCollector(func(_ context.Context, r model.Rating) error {
		got = r
		return nil
	}, func() { reset = true })
	c.Arm("sess-1", model.RatingSession)

	require.NoError(t, c.Submit(context.Background(), 4, "quick and helpful"))
	assert.Equal(t, "sess-1", got.TargetID)
	assert.Equal(t, model.RatingSession, got.Kind)
	assert.Equal(t, 4, got.Score)
	assert.Equal(t, "quick and helpful", got.Feedback)
	assert.True(t, reset, "completion hook fires after submit")
	assert.False(t, c.Pending())
}

func TestRatingFiresOnce(t *testing.T) {
	calls := 0
	c := NewCollector(func(context.Context, model.Rating) error {
		calls++
		return nil
	}, nil)
	c.Arm("sess-1", model.RatingSession)

	require.NoError(t, c.Submit(context.Background(), 5, ""))
	assert.ErrorIs(t, c.Submit(context.Background(), 5, ""), ErrRatingDone)
	assert.Equal(t, 1, calls)

	// Re-arming a finished collector is ignored.
	c.Arm("sess-1", model.RatingSession)
	assert.False(t, c.Pending())
}

func TestRatingSkip(t *testing.T) {
	calls := 0
	reset := false
	c := NewCollector(func(context.Context, model.Rating) error {
		calls++
		return nil
	}, func() { reset = true })
	c.Arm("sess-1", model.RatingSession)

	c.Skip()
	assert.Equal(t, 0, calls, "skip never hits the network")
	assert.True(t, reset)
	assert.ErrorIs(t, c.Submit(context.Background(), 3, ""), ErrRatingDone)
}

func TestRatingSubmitErrorKeepsPending(t *testing.T) {
	c := NewCollector(func(context.Context, model.Rating) error {
		return errors.New("backend down")
	}, nil)
	c.Arm("sess-1", model.RatingSession)

	assert.Error(t, c.Submit(context.Background(), 4, ""))
	assert.True(t, c.Pending(), "a failed submit can be retried")
}

func TestRatingSubmitWhileInFlightRejected(t *testing.T) {
	calls := 0
	var c *Collector
	c = NewCollector(func(context.Context, model.Rating) error {
		calls++
		// A second submit racing the network call must lose.
		assert.ErrorIs(t, c.Submit(context.Background(), 5, ""), ErrRatingDone)
		c.Skip() // and a skip mid-flight is ignored too
		return nil
	}, nil)
	c.Arm("sess-1", model.RatingSession)

	require.NoError(t, c.Submit(context.Background(), 4, ""))
	assert.Equal(t, 1, calls, "exactly one rating reaches the backend")
	assert.False(t, c.Pending())
}

func TestRatingRetryAfterFailedSubmit(t *testing.T) {
	calls := 0
	c := NewCollector(func(context.Context, model.Rating) error {
		calls++
		if calls == 1 {
			return errors.New("backend down")
		}
		return nil
	}, nil)
	c.Arm("sess-1", model.RatingSession)

	assert.Error(t, c.Submit(context.Background(), 4, ""))
	require.NoError(t, c.Submit(context.Background(), 4, ""), "failure releases the in-flight claim")
	assert.Equal(t, 2, calls)
}

func TestRatingUnarmedSubmit(t *testing.T) {
	c := NewCollector(nil, nil)
	assert.ErrorIs(t, c.Submit(context.Background(), 4, ""), ErrRatingDone)
}
