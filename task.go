package unlocknotify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TargetKind distinguishes what a subscription points at.
type TargetKind string

const (
	// TargetEntity targets a single entity (a team).
	TargetEntity TargetKind = "entity"
	// TargetRegion targets a whole region.
	TargetRegion TargetKind = "region"
)

// ParseTargetKind validates a raw target kind.
func ParseTargetKind(raw string) (TargetKind, error) {
	switch kind := TargetKind(raw); kind {
	case TargetEntity, TargetRegion:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetKind, raw)
	}
}

// Target identifies something that unlocks.
type Target struct {
	Kind TargetKind
	ID   string
}

// String returns kind:id.
func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}

// Subscription records that a subscriber wants to hear about a target unlocking.
type Subscription struct {
	ID           uuid.UUID
	SubscriberID string
	// Address is the delivery address (email) for the subscriber.
	Address   string
	Target    Target
	Notified  bool
	CreatedAt time.Time
}

// NewTask describes an outbox task to be persisted.
type NewTask struct {
	SubscriptionID uuid.UUID
	TargetID       string
	Payload        Payload
}

// Validate checks required fields and the payload.
func (t NewTask) Validate() error {
	if t.Payload == nil {
		return ErrNilPayload
	}
	if t.TargetID == "" {
		return fmt.Errorf("%w: target id is required", ErrInvalidPayload)
	}

	return ValidatePayload(t.Payload)
}

// Task is a stored outbox task.
type Task struct {
	ID             uuid.UUID
	Kind           Kind
	SubscriptionID uuid.UUID
	TargetID       string
	Payload        Payload
	Status         Status
	Attempts       int
	LastError      string
	// NextRetryAt is zero when the task is eligible immediately.
	NextRetryAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// SentAt is zero until the task is delivered.
	SentAt time.Time
}

// Eligible reports whether the task may be attempted at now with the given attempt budget.
func (t Task) Eligible(now time.Time, maxAttempts int) bool {
	if t.Status != StatusPending || t.Attempts >= maxAttempts {
		return false
	}

	return t.NextRetryAt.IsZero() || !t.NextRetryAt.After(now)
}
