package chat

import "errors"

// Sentinel errors for state machine and validation failures. These are all
// terminal at the caller's boundary; no retry is attempted by this package.
var (
	ErrInvalidTransition = errors.New("chat: invalid mode transition")
	ErrClosed            = errors.New("chat: conversation is closed")
	ErrAlreadyBound      = errors.New("chat: conversation already bound to a session")
	ErrUnbound           = errors.New("chat: no session bound yet")
	ErrAlreadyRequested  = errors.New("chat: agent already requested")
	ErrEmptyMessage      = errors.New("chat: message content is empty")
	ErrZeroRating        = errors.New("chat: rating must be between 1 and 5")
	ErrRatingDone        = errors.New("chat: rating already collected")
	ErrNotConnected      = errors.New("chat: transport is not connected")
)
