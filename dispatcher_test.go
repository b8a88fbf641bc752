package unlocknotify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velmie/unlocknotify"
	"github.com/velmie/unlocknotify/memory"
	"github.com/velmie/unlocknotify/schedule"
)

const emea schedule.Region = "EMEA"

// Positions 1 through 5 of EMEA are unlocked at testNow.
var testNow = time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

func testRoster(t *testing.T) *schedule.Roster {
	t.Helper()
	kickoff := schedule.MustDate("2026-01-20")
	roster, err := schedule.NewRoster(schedule.Calendar{
		Regions: map[schedule.Region]schedule.RegionDates{emea: {Kickoff: kickoff, Lock: kickoff}},
	}, []schedule.Entity{
		{ID: "fnc", Name: "Fnatic", Tag: "FNC", Region: emea, Position: 1},
		{ID: "navi", Name: "Natus Vincere", Tag: "NAVI", Region: emea, Position: 2},
		{ID: "tl", Name: "Team Liquid", Tag: "TL", Region: emea, Position: 3},
		{ID: "vit", Name: "Team Vitality", Tag: "VIT", Region: emea, Position: 4},
		{ID: "kc", Name: "Karmine Corp", Tag: "KC", Region: emea, Position: 5},
		{ID: "th", Name: "Team Heretics", Tag: "TH", Region: emea, Position: 6},
	})
	if err != nil {
		t.Fatalf("roster: %v", err)
	}

	return roster
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sent struct {
	to  string
	msg unlocknotify.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail func(to string) error
}

func (n *recordingNotifier) Send(_ context.Context, to string, msg unlocknotify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, sent{to: to, msg: msg})
	if n.fail != nil {
		return n.fail(to)
	}

	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.sent)
}

type countingMetrics struct {
	unlocknotify.NopMetrics

	mu       sync.Mutex
	enqueued int
	sent     int
	retries  int
	dead     int
	pending  int
}

func (m *countingMetrics) AddEnqueued(n int) { m.mu.Lock(); m.enqueued += n; m.mu.Unlock() }
func (m *countingMetrics) AddSent(n int)     { m.mu.Lock(); m.sent += n; m.mu.Unlock() }
func (m *countingMetrics) AddRetries(n int)  { m.mu.Lock(); m.retries += n; m.mu.Unlock() }
func (m *countingMetrics) AddDead(n int)     { m.mu.Lock(); m.dead += n; m.mu.Unlock() }
func (m *countingMetrics) SetPending(n int)  { m.mu.Lock(); m.pending = n; m.mu.Unlock() }

func subscribe(t *testing.T, store *memory.Store, subscriber string, kind unlocknotify.TargetKind, id string) unlocknotify.Subscription {
	t.Helper()
	sub, err := store.Subscribe(context.Background(), subscriber, subscriber+"@example.test", unlocknotify.Target{Kind: kind, ID: id})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	return sub
}

func newDispatcher(t *testing.T, tasks unlocknotify.TaskStore, subs unlocknotify.SubscriptionStore, notifier unlocknotify.Notifier, opts ...unlocknotify.Option) *unlocknotify.Dispatcher {
	t.Helper()
	opts = append([]unlocknotify.Option{unlocknotify.WithClock(unlocknotify.FixedClock(testNow))}, opts...)
	d, err := unlocknotify.NewDispatcher(tasks, subs, notifier, testRoster(t), opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	return d
}

func TestRunDeliversOnceAndMarksNotified(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	sub := subscribe(t, store, "alice", unlocknotify.TargetEntity, "kc")
	d := newDispatcher(t, store, store, notifier, unlocknotify.WithMetrics(metrics))

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Enqueued != 1 || summary.Sent != 1 || summary.Failed != 0 || summary.Message != "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if notifier.count() != 1 || notifier.sent[0].to != "alice@example.test" || notifier.sent[0].msg.Subject != "Unlocked: Karmine Corp" {
		t.Fatalf("unexpected sends: %+v", notifier.sent)
	}
	stored, _ := store.Subscription(sub.ID)
	if !stored.Notified {
		t.Fatalf("expected subscription notified")
	}
	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].Status != unlocknotify.StatusSent || tasks[0].Attempts != 1 || !tasks[0].SentAt.Equal(testNow) {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	again, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Enqueued != 0 || again.Subscriptions != 0 || again.Message != unlocknotify.MessageNoPending {
		t.Fatalf("unexpected second summary: %+v", again)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected no further sends, got %d", notifier.count())
	}
	if metrics.enqueued != 1 || metrics.sent != 1 || metrics.pending != 0 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestDiscoverTwiceEnqueuesOneTask(t *testing.T) {
	store := memory.New()
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	d := newDispatcher(t, store, store, &recordingNotifier{})

	first, err := d.Discover(context.Background(), testNow)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	second, err := d.Discover(context.Background(), testNow)
	if err != nil {
		t.Fatalf("discover again: %v", err)
	}
	if first.Enqueued != 1 || second.Enqueued != 0 || second.Skipped != 1 {
		t.Fatalf("unexpected summaries: %+v %+v", first, second)
	}
	if got := len(store.Tasks()); got != 1 {
		t.Fatalf("expected one task, got %d", got)
	}
}

func TestRepeatedFailuresBackOffAndBecomeTerminal(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{fail: func(string) error { return errors.New("provider throttled") }}
	clock := &manualClock{now: testNow}
	var handled int
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	d := newDispatcher(t, store, store, notifier,
		unlocknotify.WithClock(clock),
		unlocknotify.WithErrorHandler(func(context.Context, unlocknotify.Task, error) { handled++ }),
	)

	var deltas []time.Duration
	for attempt := 1; attempt <= unlocknotify.DefaultMaxAttempts; attempt++ {
		summary, err := d.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", attempt, err)
		}
		if summary.Failed != 1 {
			t.Fatalf("run %d: expected one failure, got %+v", attempt, summary)
		}
		task := store.Tasks()[0]
		if task.Attempts != attempt {
			t.Fatalf("run %d: expected %d attempts, got %d", attempt, attempt, task.Attempts)
		}
		deltas = append(deltas, task.NextRetryAt.Sub(clock.Now()))
		if attempt < unlocknotify.DefaultMaxAttempts {
			if task.Status != unlocknotify.StatusPending || summary.Dead != 0 {
				t.Fatalf("run %d: expected pending, got %s", attempt, task.Status)
			}
		} else if task.Status != unlocknotify.StatusFailed || summary.Dead != 1 {
			t.Fatalf("run %d: expected terminal failure, got %s", attempt, task.Status)
		}
		if task.LastError != "provider throttled" {
			t.Fatalf("unexpected last error %q", task.LastError)
		}
		clock.Set(task.NextRetryAt)
	}

	want := []time.Duration{time.Hour, 2 * time.Hour, 4 * time.Hour, 8 * time.Hour, 16 * time.Hour}
	for i := range want {
		if deltas[i] != want[i] {
			t.Fatalf("backoff %d: expected %s, got %s", i+1, want[i], deltas[i])
		}
	}

	clock.Set(testNow.Add(7 * 24 * time.Hour))
	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("final run: %v", err)
	}
	if summary.Skipped != 1 || summary.Failed != 0 || notifier.count() != unlocknotify.DefaultMaxAttempts {
		t.Fatalf("expected no sixth attempt, summary %+v sends %d", summary, notifier.count())
	}
	if handled != unlocknotify.DefaultMaxAttempts {
		t.Fatalf("expected error handler per failure, got %d", handled)
	}
}

func TestNotifierErrorDoesNotAbortDrain(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{fail: func(to string) error {
		if to == "bob@example.test" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}}
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	subscribe(t, store, "bob", unlocknotify.TargetEntity, "fnc")
	subscribe(t, store, "carol", unlocknotify.TargetEntity, "navi")
	d := newDispatcher(t, store, store, notifier)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Enqueued != 3 || summary.Sent != 2 || summary.Failed != 1 || summary.Dead != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCancelAfterClaimLeavesTaskPending(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	crashing := unlocknotify.NotifierFunc(func(ctx context.Context, _ string, _ unlocknotify.Message) error {
		cancel()
		return ctx.Err()
	})
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	d := newDispatcher(t, store, store, crashing)

	if _, err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	task := store.Tasks()[0]
	if task.Status != unlocknotify.StatusPending || task.Attempts != 1 || task.NextRetryAt.IsZero() {
		t.Fatalf("expected claimed pending task, got %+v", task)
	}

	notifier := &recordingNotifier{}
	later, err := unlocknotify.NewDispatcher(store, store, notifier, testRoster(t),
		unlocknotify.WithClock(unlocknotify.FixedClock(task.NextRetryAt)))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	summary, err := later.Run(context.Background())
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if summary.Sent != 1 || notifier.count() != 1 {
		t.Fatalf("expected retry to deliver, got %+v", summary)
	}
}

func TestConcurrentDrainsSendEachTaskOnce(t *testing.T) {
	store := memory.New()
	for i := 0; i < 10; i++ {
		for _, team := range []string{"fnc", "navi", "tl"} {
			subscribe(t, store, fmt.Sprintf("user%d", i), unlocknotify.TargetEntity, team)
		}
	}
	notifier := &recordingNotifier{}
	d := newDispatcher(t, store, store, notifier)
	if _, err := d.Discover(context.Background(), testNow); err != nil {
		t.Fatalf("discover: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Drain(context.Background(), testNow); err != nil {
				t.Errorf("drain: %v", err)
			}
		}()
	}
	wg.Wait()

	if notifier.count() != 30 {
		t.Fatalf("expected 30 sends, got %d", notifier.count())
	}
	seen := make(map[string]bool)
	for _, s := range notifier.sent {
		key := s.to + "|" + s.msg.Subject
		if seen[key] {
			t.Fatalf("duplicate send %s", key)
		}
		seen[key] = true
	}
	for _, task := range store.Tasks() {
		if task.Status != unlocknotify.StatusSent || task.Attempts != 1 {
			t.Fatalf("unexpected task %+v", task)
		}
	}
}

type flakyClaimStore struct {
	*memory.Store
	failFor uuid.UUID
}

func (s *flakyClaimStore) Claim(ctx context.Context, id uuid.UUID, prev int, now, next time.Time) error {
	if id == s.failFor {
		return errors.New("connection reset")
	}

	return s.Store.Claim(ctx, id, prev, now, next)
}

func TestStoreErrorSkipsOnlyThatTask(t *testing.T) {
	store := memory.New()
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	subscribe(t, store, "bob", unlocknotify.TargetEntity, "fnc")
	notifier := &recordingNotifier{}
	d := newDispatcher(t, store, store, notifier)
	if _, err := d.Discover(context.Background(), testNow); err != nil {
		t.Fatalf("discover: %v", err)
	}

	broken := store.Tasks()[0]
	flaky := &flakyClaimStore{Store: store, failFor: broken.ID}
	summary, err := newDispatcher(t, flaky, store, notifier).Drain(context.Background(), testNow)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if summary.StoreErrors != 1 || summary.Sent != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	task, _ := store.Task(broken.ID)
	if task.Status != unlocknotify.StatusPending || task.Attempts != 0 {
		t.Fatalf("expected untouched task, got %+v", task)
	}
}

func TestNothingUnlocked(t *testing.T) {
	store := memory.New()
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	d, err := unlocknotify.NewDispatcher(store, store, &recordingNotifier{}, testRoster(t),
		unlocknotify.WithClock(unlocknotify.FixedClock(schedule.MustDate("2025-12-01"))))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Unlocked != 0 || summary.Message != unlocknotify.MessageNothingUnlocked || len(store.Tasks()) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRegionSubscription(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{}
	subscribe(t, store, "alice", unlocknotify.TargetRegion, string(emea))
	d := newDispatcher(t, store, store, notifier)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Unlocked != 6 || summary.Sent != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	payload, ok := store.Tasks()[0].Payload.(unlocknotify.RegionUnlocked)
	if !ok || payload.UnlockedCount != 5 || payload.Region != "EMEA" {
		t.Fatalf("unexpected payload: %+v", store.Tasks()[0].Payload)
	}
	if notifier.sent[0].msg.Subject != "Unlocked: EMEA" {
		t.Fatalf("unexpected subject %q", notifier.sent[0].msg.Subject)
	}
}

func TestUnlockedCountsTargetsUnlockedInEarlierRuns(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{}
	subscribe(t, store, "alice", unlocknotify.TargetRegion, string(emea))
	d := newDispatcher(t, store, store, notifier)

	first, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Unlocked != first.Unlocked || second.Unlocked != 6 {
		t.Fatalf("unlocked changed between runs: first %+v, second %+v", first, second)
	}
	if second.Enqueued != 0 || second.Sent != 0 || notifier.count() != 1 {
		t.Fatalf("second run redelivered: %+v", second)
	}
}

// plainTaskStore hides the memory store's optional interfaces.
type plainTaskStore struct {
	s *memory.Store
}

func (p plainTaskStore) Enqueue(ctx context.Context, t unlocknotify.NewTask) (unlocknotify.Task, error) {
	return p.s.Enqueue(ctx, t)
}

func (p plainTaskStore) Eligible(ctx context.Context, now time.Time, limit, maxAttempts int) ([]unlocknotify.Task, error) {
	return p.s.Eligible(ctx, now, limit, maxAttempts)
}

func (p plainTaskStore) Claim(ctx context.Context, id uuid.UUID, prev int, now, next time.Time) error {
	return p.s.Claim(ctx, id, prev, now, next)
}

func (p plainTaskStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return p.s.MarkSent(ctx, id, at)
}

func (p plainTaskStore) RecordFailure(ctx context.Context, f unlocknotify.Failure, maxAttempts int, at time.Time) (unlocknotify.Status, error) {
	return p.s.RecordFailure(ctx, f, maxAttempts, at)
}

func TestCompletionFallbackWithoutCompleter(t *testing.T) {
	store := memory.New()
	sub := subscribe(t, store, "alice", unlocknotify.TargetEntity, "navi")
	d := newDispatcher(t, plainTaskStore{s: store}, store, &recordingNotifier{})

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	stored, _ := store.Subscription(sub.ID)
	if !stored.Notified || store.Tasks()[0].Status != unlocknotify.StatusSent {
		t.Fatalf("expected task sent and subscription notified")
	}
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	store := memory.New()
	roster := testRoster(t)
	notifier := &recordingNotifier{}

	if _, err := unlocknotify.NewDispatcher(nil, store, notifier, roster); !errors.Is(err, unlocknotify.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := unlocknotify.NewDispatcher(store, store, nil, roster); !errors.Is(err, unlocknotify.ErrNotifierRequired) {
		t.Fatalf("expected ErrNotifierRequired, got %v", err)
	}
	if _, err := unlocknotify.NewDispatcher(store, store, notifier, nil); !errors.Is(err, unlocknotify.ErrRosterRequired) {
		t.Fatalf("expected ErrRosterRequired, got %v", err)
	}
}

func TestDrainFinalizesTaskStrandedAtAttemptLimit(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	subscribe(t, store, "alice", unlocknotify.TargetEntity, "fnc")
	d := newDispatcher(t, store, store, notifier, unlocknotify.WithMetrics(metrics))
	ctx := context.Background()

	if _, err := d.Discover(ctx, testNow); err != nil {
		t.Fatalf("discover: %v", err)
	}
	// Every attempt is claimed but the process dies before recording any result.
	id := store.Tasks()[0].ID
	for attempt := 0; attempt < unlocknotify.DefaultMaxAttempts; attempt++ {
		if err := store.Claim(ctx, id, attempt, testNow, testNow); err != nil {
			t.Fatalf("claim %d: %v", attempt+1, err)
		}
	}

	summary, err := d.Drain(ctx, testNow)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if summary.Dead != 1 || summary.Failed != 0 || summary.Sent != 0 || notifier.count() != 0 {
		t.Fatalf("unexpected summary %+v sends %d", summary, notifier.count())
	}
	task, _ := store.Task(id)
	if task.Status != unlocknotify.StatusFailed || task.Attempts != unlocknotify.DefaultMaxAttempts {
		t.Fatalf("expected terminal task, got %+v", task)
	}
	if metrics.dead != 1 {
		t.Fatalf("expected dead metric 1, got %d", metrics.dead)
	}
	if pending, _ := store.PendingCount(ctx); pending != 0 {
		t.Fatalf("expected no pending tasks, got %d", pending)
	}
}
