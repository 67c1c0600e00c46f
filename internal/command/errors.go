package command

import "errors"

// Sentinel errors for command dispatch. Check with errors.Is.
var (
	// ErrInvalidCommand indicates the command failed validation before
	// anything was sent: unknown kind, missing target, or a value of
	// the wrong type.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrPublishFailed indicates the bus rejected the command payload.
	// No optimistic overlay is applied when publish fails.
	ErrPublishFailed = errors.New("command publish failed")
)
