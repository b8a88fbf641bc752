package unlocknotify

import "fmt"

// Status represents the lifecycle state of an outbox task.
type Status int16

const (
	// StatusPending indicates the task is waiting for (re)delivery.
	StatusPending Status = 0
	// StatusSent indicates the notification was delivered. Terminal.
	StatusSent Status = 1
	// StatusFailed indicates the task exhausted its attempts. Terminal.
	StatusFailed Status = -1
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int16(s))
	}
}

// Terminal reports whether a task in this status is never processed again.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed

	return nil
}

// ParseStatus converts a status name into a Status.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "pending":
		return StatusPending, nil
	case "sent":
		return StatusSent, nil
	case "failed":
		return StatusFailed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
	}
}
