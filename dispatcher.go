package unlocknotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velmie/unlocknotify/schedule"
)

// Run summary messages for passes that did nothing.
const (
	MessageNothingUnlocked = "No teams unlocked"
	MessageNoPending       = "No pending notifications"
)

// Summary reports what one run did.
type Summary struct {
	// Unlocked is the number of targets, entities and regions together, unlocked at the run instant.
	// It includes targets that were already unlocked in earlier runs.
	Unlocked      int    `json:"unlocked"`
	// Subscriptions is the number of un-notified subscriptions found for them.
	Subscriptions int    `json:"subscriptions"`
	Enqueued      int    `json:"enqueued"`
	// Skipped counts subscriptions that already had a task or could not be snapshotted.
	Skipped       int    `json:"skipped"`
	Sent          int    `json:"sent"`
	// Failed counts failed attempts. Dead counts tasks that became terminal in this run: failed
	// attempts that hit the limit plus exhausted tasks finalized at the start of the drain.
	Failed        int    `json:"failed"`
	Dead          int    `json:"dead"`
	StoreErrors   int    `json:"storeErrors"`
	Message       string `json:"message,omitempty"`
}

func (s *Summary) add(o Summary) {
	s.Unlocked += o.Unlocked
	s.Subscriptions += o.Subscriptions
	s.Enqueued += o.Enqueued
	s.Skipped += o.Skipped
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Dead += o.Dead
	s.StoreErrors += o.StoreErrors
}

// Dispatcher turns unlocked targets into outbox tasks and delivers pending tasks.
//
// A Dispatcher keeps no state between runs and is safe for concurrent use. Overlapping runs,
// in-process or across processes, rely on the store's atomic Claim to deliver each attempt once.
type Dispatcher struct {
	tasks    TaskStore
	subs     SubscriptionStore
	notifier Notifier
	roster   *schedule.Roster
	cfg      DispatcherConfig
}

// NewDispatcher constructs a Dispatcher with defaults and optional settings.
func NewDispatcher(tasks TaskStore, subs SubscriptionStore, notifier Notifier, roster *schedule.Roster, opts ...Option) (*Dispatcher, error) {
	if tasks == nil || subs == nil {
		return nil, ErrStoreRequired
	}
	if notifier == nil {
		return nil, ErrNotifierRequired
	}
	if roster == nil {
		return nil, ErrRosterRequired
	}

	var cfg DispatcherConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		tasks:    tasks,
		subs:     subs,
		notifier: notifier,
		roster:   roster,
		cfg:      cfg,
	}, nil
}

// Run performs one discovery pass followed by one drain pass at the clock's current instant.
//
// Delivery and per-task store errors are counted in the summary. Run returns an error only when a
// selection query fails or ctx is done.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() {
		d.cfg.Metrics.ObserveRunDuration(time.Since(start))
	}()

	now := d.cfg.Clock.Now().UTC()

	summary, err := d.Discover(ctx, now)
	if err != nil {
		return summary, err
	}
	drained, attempted, err := d.drain(ctx, now)
	summary.add(drained)
	if err != nil {
		return summary, err
	}
	d.recordPending(ctx)

	summary.Message = ""
	if summary.Enqueued == 0 && attempted == 0 {
		summary.Message = MessageNoPending
		if summary.Unlocked == 0 {
			summary.Message = MessageNothingUnlocked
		}
	}

	d.cfg.Logger.Info("dispatch run finished",
		"unlocked", summary.Unlocked,
		"subscriptions", summary.Subscriptions,
		"enqueued", summary.Enqueued,
		"skipped", summary.Skipped,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"dead", summary.Dead,
		"store_errors", summary.StoreErrors,
	)

	return summary, nil
}

// Discover enqueues one task per un-notified subscription whose target is unlocked at now.
func (d *Dispatcher) Discover(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	targets := d.unlockedTargets(now)
	summary.Unlocked = len(targets)
	if len(targets) == 0 {
		summary.Message = MessageNothingUnlocked

		return summary, nil
	}

	subs, err := d.subs.FindUnnotified(ctx, targets)
	if err != nil {
		return summary, fmt.Errorf("find unnotified subscriptions: %w", err)
	}
	summary.Subscriptions = len(subs)
	if len(subs) == 0 {
		summary.Message = MessageNoPending

		return summary, nil
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			d.cfg.Metrics.AddEnqueued(summary.Enqueued)

			return summary, err
		}

		payload, err := d.snapshot(sub, now)
		if err != nil {
			summary.Skipped++
			d.cfg.Logger.Warn("subscription skipped", "subscription", sub.ID, "target", sub.Target, "err", err)

			continue
		}

		_, err = d.tasks.Enqueue(ctx, NewTask{SubscriptionID: sub.ID, TargetID: sub.Target.ID, Payload: payload})
		switch {
		case err == nil:
			summary.Enqueued++
		case errors.Is(err, ErrTaskExists):
			summary.Skipped++
			d.cfg.Logger.Debug("task already enqueued", "subscription", sub.ID, "target", sub.Target)
		default:
			if ctx.Err() != nil {
				d.cfg.Metrics.AddEnqueued(summary.Enqueued)

				return summary, ctx.Err()
			}
			summary.StoreErrors++
			d.cfg.Metrics.AddStoreErrors(1)
			d.cfg.Logger.Error("enqueue failed", "subscription", sub.ID, "target", sub.Target, "err", err)
		}
	}
	d.cfg.Metrics.AddEnqueued(summary.Enqueued)

	return summary, nil
}

// Drain attempts delivery of every task eligible at now, one at a time.
func (d *Dispatcher) Drain(ctx context.Context, now time.Time) (Summary, error) {
	summary, _, err := d.drain(ctx, now)

	return summary, err
}

func (d *Dispatcher) drain(ctx context.Context, now time.Time) (Summary, int, error) {
	var summary Summary

	if err := d.failExhausted(ctx, now, &summary); err != nil {
		return summary, 0, err
	}

	tasks, err := d.tasks.Eligible(ctx, now, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return summary, 0, fmt.Errorf("select eligible tasks: %w", err)
	}

	attempted := 0
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return summary, attempted, err
		}
		claimed, err := d.deliver(ctx, task, now, &summary)
		if claimed {
			attempted++
		}
		if err != nil {
			return summary, attempted, err
		}
	}

	return summary, attempted, nil
}

// deliver runs claim, send and finalize for one task. It reports whether the task was claimed and
// returns an error only when ctx is done.
func (d *Dispatcher) deliver(ctx context.Context, task Task, now time.Time, summary *Summary) (bool, error) {
	logger := d.cfg.Logger.With("task", task.ID, "kind", task.Kind)

	if !task.Eligible(now, d.cfg.MaxAttempts) {
		return false, nil
	}

	next := now.Add(d.cfg.Backoff.Delay(task.Attempts))
	if err := d.tasks.Claim(ctx, task.ID, task.Attempts, now, next); err != nil {
		if errors.Is(err, ErrTaskNotClaimable) {
			logger.Debug("task claimed elsewhere")

			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		d.storeError(summary, logger, "claim failed", err)

		return false, nil
	}
	task.Attempts++

	sendErr := d.send(ctx, task)
	if sendErr != nil && ctx.Err() != nil {
		// The claimed attempt stays counted and the task stays pending.
		return true, ctx.Err()
	}
	if sendErr != nil {
		d.fail(ctx, task, sendErr, now, summary, logger)

		return true, nil
	}

	d.complete(ctx, task, now, summary, logger)

	return true, nil
}

func (d *Dispatcher) send(ctx context.Context, task Task) error {
	if task.Payload == nil {
		return ErrNilPayload
	}
	msg, err := d.cfg.Renderer.Render(task.Payload)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	return d.notifier.Send(ctx, task.Payload.Recipient(), msg)
}

func (d *Dispatcher) fail(ctx context.Context, task Task, sendErr error, now time.Time, summary *Summary, logger Logger) {
	if d.cfg.ErrorHandler != nil {
		d.cfg.ErrorHandler(ctx, task, sendErr)
	}

	status, err := d.tasks.RecordFailure(ctx, Failure{TaskID: task.ID, Err: sendErr}, d.cfg.MaxAttempts, now)
	if err != nil {
		d.storeError(summary, logger, "record failure failed", err)

		return
	}

	summary.Failed++
	if status == StatusFailed {
		summary.Dead++
		d.cfg.Metrics.AddDead(1)
		logger.Warn("delivery failed permanently", "attempts", task.Attempts, "err", sendErr)

		return
	}
	d.cfg.Metrics.AddRetries(1)
	logger.Warn("delivery failed", "attempts", task.Attempts, "err", sendErr)
}

func (d *Dispatcher) complete(ctx context.Context, task Task, now time.Time, summary *Summary, logger Logger) {
	if completer, ok := d.tasks.(DeliveryCompleter); ok {
		if err := completer.CompleteDelivery(ctx, task.ID, task.SubscriptionID, now); err != nil {
			d.storeError(summary, logger, "complete delivery failed", err)

			return
		}
		summary.Sent++
		d.cfg.Metrics.AddSent(1)

		return
	}

	logger.Warn("task store does not support atomic completion; falling back to separate writes")
	if err := d.tasks.MarkSent(ctx, task.ID, now); err != nil {
		d.storeError(summary, logger, "mark sent failed", err)

		return
	}
	summary.Sent++
	d.cfg.Metrics.AddSent(1)
	if err := d.subs.MarkNotified(ctx, task.SubscriptionID); err != nil {
		d.storeError(summary, logger, "mark notified failed", err)
	}
}

// failExhausted finalizes tasks stranded at the attempt limit. Only a done ctx is returned.
func (d *Dispatcher) failExhausted(ctx context.Context, now time.Time, summary *Summary) error {
	failer, ok := d.tasks.(ExhaustedFailer)
	if !ok {
		return nil
	}

	count, err := failer.FailExhausted(ctx, d.cfg.MaxAttempts, now)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.storeError(summary, d.cfg.Logger, "fail exhausted tasks failed", err)

		return nil
	}
	if count > 0 {
		summary.Dead += count
		d.cfg.Metrics.AddDead(count)
		d.cfg.Logger.Warn("exhausted tasks marked failed", "count", count)
	}

	return nil
}

func (d *Dispatcher) storeError(summary *Summary, logger Logger, msg string, err error) {
	summary.StoreErrors++
	d.cfg.Metrics.AddStoreErrors(1)
	logger.Error(msg, "err", err)
}

func (d *Dispatcher) unlockedTargets(now time.Time) []Target {
	entities := d.roster.UnlockedEntities(now)
	regions := d.roster.UnlockedRegions(now)

	targets := make([]Target, 0, len(entities)+len(regions))
	for _, e := range entities {
		targets = append(targets, Target{Kind: TargetEntity, ID: e.ID})
	}
	for _, region := range regions {
		targets = append(targets, Target{Kind: TargetRegion, ID: string(region)})
	}

	return targets
}

func (d *Dispatcher) snapshot(sub Subscription, now time.Time) (Payload, error) {
	var payload Payload
	switch sub.Target.Kind {
	case TargetEntity:
		e, ok := d.roster.Entity(sub.Target.ID)
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", sub.Target.ID)
		}
		payload = EntityUnlocked{
			Address:    sub.Address,
			EntityID:   e.ID,
			Name:       e.Name,
			Tag:        e.Tag,
			Region:     string(e.Region),
			UnlockDate: d.roster.UnlockDate(e),
		}
	case TargetRegion:
		region := schedule.Region(sub.Target.ID)
		kickoff, ok := d.roster.Kickoff(region)
		if !ok {
			return nil, fmt.Errorf("unknown region %q", sub.Target.ID)
		}
		payload = RegionUnlocked{
			Address:       sub.Address,
			Region:        string(region),
			Kickoff:       kickoff,
			UnlockedCount: d.roster.RegionUnlockCount(region, now),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetKind, sub.Target.Kind)
	}

	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	return payload, nil
}

func (d *Dispatcher) recordPending(ctx context.Context) {
	counter, ok := d.tasks.(PendingCounter)
	if !ok || ctx.Err() != nil {
		return
	}

	count, err := counter.PendingCount(ctx)
	if err != nil {
		d.cfg.Logger.Warn("pending count failed", "err", err)

		return
	}
	d.cfg.Metrics.SetPending(count)
}
