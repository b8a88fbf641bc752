package unlocknotify

import (
	"context"

	"github.com/google/uuid"
)

// MaxErrorLength is the number of runes of a delivery error kept on a task.
const MaxErrorLength = 1024

// Failure captures a delivery error for a task.
type Failure struct {
	TaskID uuid.UUID
	Err    error
}

// Text returns the error message truncated to MaxErrorLength runes.
func (f Failure) Text() string {
	if f.Err == nil {
		return ""
	}
	msg := []rune(f.Err.Error())
	if len(msg) > MaxErrorLength {
		msg = msg[:MaxErrorLength]
	}

	return string(msg)
}

// FailureHandler is called when a delivery attempt returns an error.
type FailureHandler func(ctx context.Context, task Task, err error)
