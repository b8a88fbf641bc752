package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/velmie/unlocknotify"
)

// errDuplicateEntry is the MySQL error number for a unique key violation.
const errDuplicateEntry = 1062

// Executor allows enqueuing within an existing transaction.
type Executor interface {
	// ExecContext executes a statement with the provided context.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements the task outbox and the subscription store on MySQL.
type Store struct {
	db      *sql.DB
	cfg     Config
	queries queries
}

var (
	_ unlocknotify.TaskStore         = (*Store)(nil)
	_ unlocknotify.SubscriptionStore = (*Store)(nil)
	_ unlocknotify.DeliveryCompleter = (*Store)(nil)
	_ unlocknotify.PendingCounter    = (*Store)(nil)
	_ unlocknotify.ExhaustedFailer   = (*Store)(nil)
)

// decodeError reports a row whose payload does not decode or validate.
type decodeError struct {
	id  uuid.UUID
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("unlocknotify mysql: task %s: %v", e.id, e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

// NewStore constructs a MySQL store with validated configuration.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	outbox, err := sanitizeTableName(cfg.OutboxTable)
	if err != nil {
		return nil, err
	}
	subs, err := sanitizeTableName(cfg.SubscriptionTable)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(outbox, subs) {
		return nil, ErrSameTable
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		queries: newQueries(outbox, subs),
	}, nil
}

// MustNewStore constructs a MySQL store or panics on error.
func MustNewStore(db *sql.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Enqueue implements unlocknotify.TaskStore.
func (s *Store) Enqueue(ctx context.Context, task unlocknotify.NewTask) (unlocknotify.Task, error) {
	return s.EnqueueWith(ctx, s.db, task)
}

// EnqueueWith inserts a task using the provided executor, so callers can enqueue inside their own
// transaction.
func (s *Store) EnqueueWith(ctx context.Context, exec Executor, task unlocknotify.NewTask) (unlocknotify.Task, error) {
	if exec == nil {
		return unlocknotify.Task{}, ErrExecutorRequired
	}
	if err := task.Validate(); err != nil {
		return unlocknotify.Task{}, err
	}
	kind, raw, err := unlocknotify.EncodePayload(task.Payload)
	if err != nil {
		return unlocknotify.Task{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return unlocknotify.Task{}, fmt.Errorf("unlocknotify mysql: generate id failed: %w", err)
	}
	now := s.now()

	_, err = exec.ExecContext(
		ctx,
		s.queries.insertTask,
		id[:],
		kind,
		task.SubscriptionID[:],
		task.TargetID,
		[]byte(raw),
		unlocknotify.StatusPending,
		now,
		now,
	)
	if err != nil {
		if isDuplicate(err) {
			return unlocknotify.Task{}, unlocknotify.ErrTaskExists
		}

		return unlocknotify.Task{}, fmt.Errorf("unlocknotify mysql: insert task failed: %w", err)
	}

	return unlocknotify.Task{
		ID:             id,
		Kind:           kind,
		SubscriptionID: task.SubscriptionID,
		TargetID:       task.TargetID,
		Payload:        task.Payload,
		Status:         unlocknotify.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Eligible implements unlocknotify.TaskStore.
func (s *Store) Eligible(ctx context.Context, now time.Time, limit, maxAttempts int) ([]unlocknotify.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.queries.selectEligibleLimit, unlocknotify.StatusPending, maxAttempts, dbTime(now), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.queries.selectEligible, unlocknotify.StatusPending, maxAttempts, dbTime(now))
	}
	if err != nil {
		return nil, fmt.Errorf("unlocknotify mysql: select eligible failed: %w", err)
	}
	defer rows.Close()

	tasks := make([]unlocknotify.Task, 0, max(limit, 0))
	var undecodable []unlocknotify.Failure
	for rows.Next() {
		task, err := scanTask(rows)
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			undecodable = append(undecodable, unlocknotify.Failure{TaskID: decodeErr.id, Err: decodeErr.err})
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unlocknotify mysql: rows failed: %w", err)
	}
	_ = rows.Close()

	for _, failure := range undecodable {
		s.failUndecodable(ctx, failure)
	}

	return tasks, nil
}

// failUndecodable makes a row that can never be delivered terminal so it stops occupying the batch.
func (s *Store) failUndecodable(ctx context.Context, failure unlocknotify.Failure) {
	_, err := s.db.ExecContext(
		ctx,
		s.queries.failUndecodable,
		unlocknotify.StatusFailed,
		failure.Text(),
		s.now(),
		failure.TaskID[:],
		unlocknotify.StatusPending,
	)
	if err != nil {
		s.cfg.Logger.Error("mark undecodable task failed", "task", failure.TaskID, "err", err)

		return
	}
	s.cfg.Logger.Warn("undecodable task marked failed", "task", failure.TaskID, "err", failure.Err)
}

// Task loads a task by id.
func (s *Store) Task(ctx context.Context, id uuid.UUID) (unlocknotify.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, s.queries.selectTask, id[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return unlocknotify.Task{}, unlocknotify.ErrTaskNotFound
	}

	return task, err
}

// Claim implements unlocknotify.TaskStore.
func (s *Store) Claim(ctx context.Context, id uuid.UUID, prevAttempts int, now, nextRetryAt time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		s.queries.claim,
		dbTime(nextRetryAt),
		s.now(),
		id[:],
		unlocknotify.StatusPending,
		prevAttempts,
		dbTime(now),
	)
	if err != nil {
		return fmt.Errorf("unlocknotify mysql: claim failed: %w", err)
	}

	return requireRow(res, unlocknotify.ErrTaskNotClaimable)
}

// MarkSent implements unlocknotify.TaskStore.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.markSent(ctx, s.db, id, at)
}

func (s *Store) markSent(ctx context.Context, exec Executor, id uuid.UUID, at time.Time) error {
	res, err := exec.ExecContext(
		ctx,
		s.queries.markSent,
		unlocknotify.StatusSent,
		dbTime(at),
		s.now(),
		id[:],
		unlocknotify.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("unlocknotify mysql: mark sent failed: %w", err)
	}

	return requireRow(res, unlocknotify.ErrTaskNotFound)
}

// RecordFailure implements unlocknotify.TaskStore. The row is locked while the new status is decided.
func (s *Store) RecordFailure(ctx context.Context, failure unlocknotify.Failure, maxAttempts int, _ time.Time) (unlocknotify.Status, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("unlocknotify mysql: begin tx failed: %w", err)
	}

	var (
		status   unlocknotify.Status
		attempts int
	)
	err = tx.QueryRowContext(ctx, s.queries.lockAttempts, failure.TaskID[:]).Scan(&status, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rollbackWith(tx, unlocknotify.ErrTaskNotFound)
	}
	if err != nil {
		return 0, rollbackWith(tx, fmt.Errorf("unlocknotify mysql: lock task failed: %w", err))
	}
	if status != unlocknotify.StatusPending {
		return 0, rollbackWith(tx, unlocknotify.ErrTaskNotFound)
	}

	if attempts >= maxAttempts {
		status = unlocknotify.StatusFailed
	}
	if _, err := tx.ExecContext(ctx, s.queries.recordFailure, failure.Text(), status, s.now(), failure.TaskID[:]); err != nil {
		return 0, rollbackWith(tx, fmt.Errorf("unlocknotify mysql: record failure failed: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unlocknotify mysql: commit failed: %w", err)
	}

	return status, nil
}

// CompleteDelivery implements unlocknotify.DeliveryCompleter.
func (s *Store) CompleteDelivery(ctx context.Context, taskID, subscriptionID uuid.UUID, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("unlocknotify mysql: begin tx failed: %w", err)
	}
	if err := s.markSent(ctx, tx, taskID, at); err != nil {
		return rollbackWith(tx, err)
	}
	if _, err := tx.ExecContext(ctx, s.queries.markNotified, subscriptionID[:]); err != nil {
		return rollbackWith(tx, fmt.Errorf("unlocknotify mysql: mark notified failed: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unlocknotify mysql: commit failed: %w", err)
	}

	return nil
}

// FailExhausted implements unlocknotify.ExhaustedFailer.
func (s *Store) FailExhausted(ctx context.Context, maxAttempts int, now time.Time) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		s.queries.failExhausted,
		unlocknotify.StatusFailed,
		unlocknotify.ErrAttemptsExhausted.Error(),
		s.now(),
		unlocknotify.StatusPending,
		maxAttempts,
		dbTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("unlocknotify mysql: fail exhausted failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unlocknotify mysql: rows affected failed: %w", err)
	}

	return int(affected), nil
}

// PendingCount returns the number of pending tasks.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.queries.countPending, unlocknotify.StatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("unlocknotify mysql: pending count failed: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (unlocknotify.Task, error) {
	var (
		task      unlocknotify.Task
		payload   []byte
		lastError sql.NullString
		nextRetry sql.NullTime
		sentAt    sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.Kind,
		&task.SubscriptionID,
		&task.TargetID,
		&payload,
		&task.Status,
		&task.Attempts,
		&lastError,
		&nextRetry,
		&task.CreatedAt,
		&task.UpdatedAt,
		&sentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return task, err
	}
	if err != nil {
		return task, fmt.Errorf("unlocknotify mysql: scan task failed: %w", err)
	}

	task.Payload, err = unlocknotify.DecodePayload(task.Kind, payload)
	if err != nil {
		return task, &decodeError{id: task.ID, err: err}
	}
	task.LastError = lastError.String
	if nextRetry.Valid {
		task.NextRetryAt = nextRetry.Time.UTC()
	}
	if sentAt.Valid {
		task.SentAt = sentAt.Time.UTC()
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	return task, nil
}

func (s *Store) now() time.Time {
	return dbTime(s.cfg.Clock.Now())
}

// dbTime matches DATETIME(6) precision so values read back compare equal to what was written.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func requireRow(res sql.Result, none error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlocknotify mysql: rows affected failed: %w", err)
	}
	if affected == 0 {
		return none
	}

	return nil
}

func rollbackWith(tx *sql.Tx, err error) error {
	rollbackErr := tx.Rollback()
	if rollbackErr == nil || errors.Is(rollbackErr, sql.ErrTxDone) {
		return err
	}

	return errors.Join(err, fmt.Errorf("unlocknotify mysql: rollback failed: %w", rollbackErr))
}

func isDuplicate(err error) bool {
	var myErr *driver.MySQLError

	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}
