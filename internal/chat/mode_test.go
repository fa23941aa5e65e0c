package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeHappyPath(t *testing.T) {
	c := NewModeController()
	assert.Equal(t, ModeAutomated, c.Mode())
	assert.True(t, c.AllowAssistant())

	require.NoError(t, c.RequestAgent())
	assert.Equal(t, ModeAgentRequested, c.Mode())
	assert.False(t, c.AllowAssistant(), "no assistant completions while a human is expected")
	assert.False(t, c.RequestedAt().IsZero())

	require.NoError(t, c.AgentJoined())
	assert.Equal(t, ModeAgentActive, c.Mode())
	assert.True(t, c.EverActive())

	require.NoError(t, c.Close())
	assert.Equal(t, ModeClosed, c.Mode())
}

func TestModeCloseWithoutAgent(t *testing.T) {
	c := NewModeController()
	require.NoError(t, c.Close())
	assert.Equal(t, ModeClosed, c.Mode())
	assert.False(t, c.EverActive())
}

func TestModeRejectsIllegalTransitions(t *testing.T) {
	t.Run("join without request", func(t *testing.T) {
		c := NewModeController()
		assert.ErrorIs(t, c.AgentJoined(), ErrInvalidTransition)
	})

	t.Run("double request", func(t *testing.T) {
		c := NewModeController()
		require.NoError(t, c.RequestAgent())
		assert.ErrorIs(t, c.RequestAgent(), ErrAlreadyRequested)
	})

	t.Run("anything after closed", func(t *testing.T) {
		c := NewModeController()
		require.NoError(t, c.Close())
		assert.ErrorIs(t, c.RequestAgent(), ErrInvalidTransition)
		assert.ErrorIs(t, c.AgentJoined(), ErrInvalidTransition)
		assert.ErrorIs(t, c.Close(), ErrClosed)
	})

	t.Run("join after active", func(t *testing.T) {
		c := NewModeController()
		require.NoError(t, c.RequestAgent())
		require.NoError(t, c.AgentJoined())
		assert.ErrorIs(t, c.AgentJoined(), ErrInvalidTransition)
	})
}

func TestModeExactlyOneActiveMode(t *testing.T) {
	c := NewModeController()
	require.NoError(t, c.RequestAgent())
	// Waiting for a human still means the assistant is out of the loop.
	assert.False(t, c.AllowAssistant())
	require.NoError(t, c.AgentJoined())
	assert.False(t, c.AllowAssistant())
}
