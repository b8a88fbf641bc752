// Package memory provides an in-process task and subscription store for tests and local runs.
//
// Every method takes one mutex, so each call is a single atomic transition, matching the guarantees of
// the durable stores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velmie/unlocknotify"
)

type pairKey struct {
	subscription uuid.UUID
	target       string
}

type subscriberKey struct {
	subscriber string
	target     unlocknotify.Target
}

// Store keeps tasks and subscriptions in maps guarded by a mutex.
type Store struct {
	mu sync.Mutex

	clock unlocknotify.Clock

	tasks   map[uuid.UUID]unlocknotify.Task
	order   []uuid.UUID
	byPair  map[pairKey]uuid.UUID
	subs    map[uuid.UUID]unlocknotify.Subscription
	subKeys map[subscriberKey]uuid.UUID
}

var (
	_ unlocknotify.TaskStore         = (*Store)(nil)
	_ unlocknotify.SubscriptionStore = (*Store)(nil)
	_ unlocknotify.DeliveryCompleter = (*Store)(nil)
	_ unlocknotify.PendingCounter    = (*Store)(nil)
	_ unlocknotify.ExhaustedFailer   = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created and updated timestamps.
func WithClock(clock unlocknotify.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:   unlocknotify.SystemClock{},
		tasks:   make(map[uuid.UUID]unlocknotify.Task),
		byPair:  make(map[pairKey]uuid.UUID),
		subs:    make(map[uuid.UUID]unlocknotify.Subscription),
		subKeys: make(map[subscriberKey]uuid.UUID),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe records a subscription. Subscribing twice to the same target returns the existing one.
func (s *Store) Subscribe(_ context.Context, subscriberID, address string, target unlocknotify.Target) (unlocknotify.Subscription, error) {
	if strings.TrimSpace(address) == "" {
		return unlocknotify.Subscription{}, unlocknotify.ErrAddressRequired
	}
	if _, err := unlocknotify.ParseTargetKind(string(target.Kind)); err != nil {
		return unlocknotify.Subscription{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriberKey{subscriber: subscriberID, target: target}
	if id, ok := s.subKeys[key]; ok {
		return s.subs[id], nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return unlocknotify.Subscription{}, err
	}
	sub := unlocknotify.Subscription{
		ID:           id,
		SubscriberID: subscriberID,
		Address:      address,
		Target:       target,
		CreatedAt:    s.clock.Now().UTC(),
	}
	s.subs[id] = sub
	s.subKeys[key] = id

	return sub, nil
}

// Subscription returns a subscription by id.
func (s *Store) Subscription(id uuid.UUID) (unlocknotify.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]

	return sub, ok
}

// FindUnnotified implements unlocknotify.SubscriptionStore.
func (s *Store) FindUnnotified(ctx context.Context, targets []unlocknotify.Target) ([]unlocknotify.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[unlocknotify.Target]struct{}, len(targets))
	for _, t := range targets {
		want[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]unlocknotify.Subscription, 0)
	for _, sub := range s.subs {
		if sub.Notified {
			continue
		}
		if _, ok := want[sub.Target]; ok {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})

	return out, nil
}

// MarkNotified implements unlocknotify.SubscriptionStore.
func (s *Store) MarkNotified(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markNotifiedLocked(id)
}

func (s *Store) markNotifiedLocked(id uuid.UUID) error {
	sub, ok := s.subs[id]
	if !ok {
		return nil
	}
	sub.Notified = true
	s.subs[id] = sub

	return nil
}

// Enqueue implements unlocknotify.TaskStore.
func (s *Store) Enqueue(ctx context.Context, task unlocknotify.NewTask) (unlocknotify.Task, error) {
	if err := ctx.Err(); err != nil {
		return unlocknotify.Task{}, err
	}
	if err := task.Validate(); err != nil {
		return unlocknotify.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{subscription: task.SubscriptionID, target: task.TargetID}
	if _, ok := s.byPair[key]; ok {
		return unlocknotify.Task{}, unlocknotify.ErrTaskExists
	}

	id, err := uuid.NewV7()
	if err != nil {
		return unlocknotify.Task{}, err
	}
	now := s.clock.Now().UTC()
	stored := unlocknotify.Task{
		ID:             id,
		Kind:           task.Payload.Kind(),
		SubscriptionID: task.SubscriptionID,
		TargetID:       task.TargetID,
		Payload:        task.Payload,
		Status:         unlocknotify.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.tasks[id] = stored
	s.order = append(s.order, id)
	s.byPair[key] = id

	return stored, nil
}

// Eligible implements unlocknotify.TaskStore. Tasks are returned in creation order.
func (s *Store) Eligible(ctx context.Context, now time.Time, limit, maxAttempts int) ([]unlocknotify.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]unlocknotify.Task, 0)
	for _, id := range s.order {
		task := s.tasks[id]
		if !task.Eligible(now, maxAttempts) {
			continue
		}
		out = append(out, task)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

// Claim implements unlocknotify.TaskStore.
func (s *Store) Claim(ctx context.Context, id uuid.UUID, prevAttempts int, now, nextRetryAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return unlocknotify.ErrTaskNotFound
	}
	if task.Status != unlocknotify.StatusPending || task.Attempts != prevAttempts {
		return unlocknotify.ErrTaskNotClaimable
	}
	if !task.NextRetryAt.IsZero() && task.NextRetryAt.After(now) {
		return unlocknotify.ErrTaskNotClaimable
	}

	task.Attempts++
	task.NextRetryAt = nextRetryAt.UTC()
	task.UpdatedAt = s.clock.Now().UTC()
	s.tasks[id] = task

	return nil
}

// MarkSent implements unlocknotify.TaskStore.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markSentLocked(id, at)
}

func (s *Store) markSentLocked(id uuid.UUID, at time.Time) error {
	task, ok := s.tasks[id]
	if !ok || task.Status != unlocknotify.StatusPending {
		return unlocknotify.ErrTaskNotFound
	}
	task.Status = unlocknotify.StatusSent
	task.SentAt = at.UTC()
	task.NextRetryAt = time.Time{}
	task.UpdatedAt = s.clock.Now().UTC()
	s.tasks[id] = task

	return nil
}

// CompleteDelivery implements unlocknotify.DeliveryCompleter.
func (s *Store) CompleteDelivery(ctx context.Context, taskID, subscriptionID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.markSentLocked(taskID, at); err != nil {
		return err
	}

	return s.markNotifiedLocked(subscriptionID)
}

// RecordFailure implements unlocknotify.TaskStore.
func (s *Store) RecordFailure(ctx context.Context, failure unlocknotify.Failure, maxAttempts int, _ time.Time) (unlocknotify.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[failure.TaskID]
	if !ok || task.Status != unlocknotify.StatusPending {
		return 0, unlocknotify.ErrTaskNotFound
	}
	task.LastError = failure.Text()
	if task.Attempts >= maxAttempts {
		task.Status = unlocknotify.StatusFailed
	}
	task.UpdatedAt = s.clock.Now().UTC()
	s.tasks[failure.TaskID] = task

	return task.Status, nil
}

// FailExhausted implements unlocknotify.ExhaustedFailer.
func (s *Store) FailExhausted(ctx context.Context, maxAttempts int, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, task := range s.tasks {
		if task.Status != unlocknotify.StatusPending || task.Attempts < maxAttempts || task.NextRetryAt.After(now) {
			continue
		}
		task.Status = unlocknotify.StatusFailed
		if task.LastError == "" {
			task.LastError = unlocknotify.ErrAttemptsExhausted.Error()
		}
		task.UpdatedAt = s.clock.Now().UTC()
		s.tasks[id] = task
		changed++
	}

	return changed, nil
}

// PendingCount implements unlocknotify.PendingCounter.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.Status == unlocknotify.StatusPending {
			count++
		}
	}

	return count, nil
}

// Task returns a task by id.
func (s *Store) Task(id uuid.UUID) (unlocknotify.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]

	return task, ok
}

// Tasks returns every task in creation order.
func (s *Store) Tasks() []unlocknotify.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]unlocknotify.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}

	return out
}
