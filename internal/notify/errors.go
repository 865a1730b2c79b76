package notify

import "errors"

// Sentinel errors for notify operations.
var (
	// ErrChannelDisabled is returned when Send is called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidStory is returned when the story passed to Send is nil.
	ErrInvalidStory = errors.New("invalid story")
)
