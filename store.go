package unlocknotify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore is the durable record of who wants to hear about which target.
type SubscriptionStore interface {
	// FindUnnotified returns subscriptions to any of the targets whose notified flag is false.
	FindUnnotified(ctx context.Context, targets []Target) ([]Subscription, error)
	// MarkNotified sets the notified flag. Marking an already notified subscription is not an error.
	MarkNotified(ctx context.Context, subscriptionID uuid.UUID) error
}

// TaskStore is the durable outbox. Every mutating call is a single atomic write.
type TaskStore interface {
	// Enqueue persists a pending task. It returns ErrTaskExists when the subscription already has a
	// task for the same target.
	Enqueue(ctx context.Context, task NewTask) (Task, error)
	// Eligible returns pending tasks with fewer than maxAttempts attempts whose retry time is unset or
	// not after now, at most limit rows (limit <= 0 means no limit).
	Eligible(ctx context.Context, now time.Time, limit, maxAttempts int) ([]Task, error)
	// Claim increments attempts and sets nextRetryAt when the task is still pending, due at now and
	// still has prevAttempts attempts. Otherwise it returns ErrTaskNotClaimable.
	Claim(ctx context.Context, id uuid.UUID, prevAttempts int, now, nextRetryAt time.Time) error
	// MarkSent marks the task sent at the given time and clears its retry time.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordFailure stores the failure error. The task becomes StatusFailed when its attempts reached
	// maxAttempts and stays StatusPending otherwise. The resulting status is returned.
	RecordFailure(ctx context.Context, failure Failure, maxAttempts int, at time.Time) (Status, error)
}

// DeliveryCompleter marks a task sent and its subscription notified in one transaction.
type DeliveryCompleter interface {
	// CompleteDelivery applies MarkSent and MarkNotified atomically.
	CompleteDelivery(ctx context.Context, taskID, subscriptionID uuid.UUID, at time.Time) error
}

// PendingCounter provides a total count of pending tasks.
type PendingCounter interface {
	// PendingCount returns the current number of pending tasks.
	PendingCount(ctx context.Context) (int, error)
}

// ExhaustedFailer finalizes tasks whose attempts ran out without a recorded result, as left behind by a
// crash or a store error between the last claim and its outcome.
type ExhaustedFailer interface {
	// FailExhausted marks failed every pending task with at least maxAttempts attempts whose retry time
	// is unset or not after now. It returns the number of tasks changed.
	FailExhausted(ctx context.Context, maxAttempts int, now time.Time) (int, error)
}
