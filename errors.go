package unlocknotify

import "errors"

var (
	// ErrTaskExists is returned by Enqueue when the subscription already has a task for the target.
	ErrTaskExists = errors.New("unlocknotify: task already exists for subscription")
	// ErrTaskNotClaimable signals that a task changed since it was selected (claimed by another runner,
	// already terminal, or not yet due).
	ErrTaskNotClaimable = errors.New("unlocknotify: task is not claimable")
	// ErrTaskNotFound is returned when a task id does not exist or is not pending.
	ErrTaskNotFound = errors.New("unlocknotify: task not found")
	// ErrSubscriptionNotFound is returned when a subscription does not exist.
	ErrSubscriptionNotFound = errors.New("unlocknotify: subscription not found")
	// ErrInvalidKind is returned when a task kind is not one of the known kinds.
	ErrInvalidKind = errors.New("unlocknotify: invalid task kind")
	// ErrInvalidPayload is returned when a payload cannot be decoded or fails validation.
	ErrInvalidPayload = errors.New("unlocknotify: invalid task payload")
	// ErrAddressRequired is returned when a payload has no delivery address.
	ErrAddressRequired = errors.New("unlocknotify: delivery address is required")
	// ErrInvalidStatus is returned when parsing an unknown status name.
	ErrInvalidStatus = errors.New("unlocknotify: invalid status")
	// ErrInvalidTargetKind is returned when parsing an unknown target kind.
	ErrInvalidTargetKind = errors.New("unlocknotify: invalid target kind")
	// ErrNilPayload is returned when a task is enqueued without payload.
	ErrNilPayload = errors.New("unlocknotify: payload is required")
	// ErrStoreRequired is returned by NewDispatcher when a store is missing.
	ErrStoreRequired = errors.New("unlocknotify: store is required")
	// ErrNotifierRequired is returned by NewDispatcher when the notifier is missing.
	ErrNotifierRequired = errors.New("unlocknotify: notifier is required")
	// ErrAttemptsExhausted is the last error of a task finalized by FailExhausted without a recorded
	// failure.
	ErrAttemptsExhausted = errors.New("unlocknotify: attempt limit reached without a recorded result")
	// ErrRosterRequired is returned by NewDispatcher when the roster is missing.
	ErrRosterRequired = errors.New("unlocknotify: roster is required")
)
