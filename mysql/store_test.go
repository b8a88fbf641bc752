package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/velmie/unlocknotify"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeExecutor struct {
	query string
	args  []any
	err   error
}

func (f *fakeExecutor) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.query = query
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult{}, nil
}

func newTestStore() *Store {
	return &Store{
		cfg:     Config{}.withDefaults(),
		queries: newQueries("outbox", "subscriptions"),
	}
}

func entityTask() unlocknotify.NewTask {
	return unlocknotify.NewTask{
		SubscriptionID: uuid.New(),
		TargetID:       "fnc",
		Payload:        unlocknotify.EntityUnlocked{Address: "a@example.test", EntityID: "fnc", Name: "Fnatic", Region: "EMEA"},
	}
}

func TestEnqueueWithWritesEncodedPayload(t *testing.T) {
	store := newTestStore()
	exec := &fakeExecutor{}

	task, err := store.EnqueueWith(context.Background(), exec, entityTask())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if task.ID == uuid.Nil || task.Kind != unlocknotify.KindEntityUnlocked || task.Status != unlocknotify.StatusPending {
		t.Fatalf("unexpected task: %+v", task)
	}
	if !strings.HasPrefix(exec.query, "INSERT INTO outbox") {
		t.Fatalf("unexpected query %q", exec.query)
	}
	if len(exec.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(exec.args))
	}
	if id, ok := exec.args[0].([]byte); !ok || len(id) != 16 {
		t.Fatalf("expected binary id, got %T", exec.args[0])
	}
	if payload, ok := exec.args[4].([]byte); !ok || !strings.Contains(string(payload), `"name":"Fnatic"`) {
		t.Fatalf("unexpected payload arg %v", exec.args[4])
	}
}

func TestEnqueueWithMapsDuplicateKey(t *testing.T) {
	store := newTestStore()
	exec := &fakeExecutor{err: &driver.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry"}}

	if _, err := store.EnqueueWith(context.Background(), exec, entityTask()); !errors.Is(err, unlocknotify.ErrTaskExists) {
		t.Fatalf("expected ErrTaskExists, got %v", err)
	}
}

func TestEnqueueWithWrapsOtherErrors(t *testing.T) {
	store := newTestStore()
	boom := errors.New("connection refused")
	exec := &fakeExecutor{err: boom}

	_, err := store.EnqueueWith(context.Background(), exec, entityTask())
	if !errors.Is(err, boom) || errors.Is(err, unlocknotify.ErrTaskExists) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestEnqueueWithValidates(t *testing.T) {
	store := newTestStore()
	exec := &fakeExecutor{}

	if _, err := store.EnqueueWith(context.Background(), nil, entityTask()); !errors.Is(err, ErrExecutorRequired) {
		t.Fatalf("expected ErrExecutorRequired, got %v", err)
	}
	task := entityTask()
	task.Payload = unlocknotify.EntityUnlocked{EntityID: "fnc", Name: "Fnatic"}
	if _, err := store.EnqueueWith(context.Background(), exec, task); !errors.Is(err, unlocknotify.ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
	if exec.query != "" {
		t.Fatalf("expected no statement for an invalid task")
	}
}

func TestNewStoreValidatesTables(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrDBRequired) {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}

	db, err := sql.Open("mysql", "root:secret@tcp(127.0.0.1:1)/unlocknotify?parseTime=true")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := NewStore(db, WithOutboxTable("tasks"), WithSubscriptionTable("TASKS")); !errors.Is(err, ErrSameTable) {
		t.Fatalf("expected ErrSameTable, got %v", err)
	}
	if _, err := NewStore(db, WithOutboxTable("tasks;")); !errors.Is(err, ErrInvalidTableName) {
		t.Fatalf("expected ErrInvalidTableName, got %v", err)
	}
	if _, err := NewStore(db); err != nil {
		t.Fatalf("expected defaults to be valid: %v", err)
	}
}

func TestBuildFindUnnotified(t *testing.T) {
	q := newQueries("outbox", "subscriptions")

	got := q.buildFindUnnotified(3)
	if !strings.HasSuffix(got, "IN ((?, ?), (?, ?), (?, ?)) ORDER BY id ASC") {
		t.Fatalf("unexpected query %q", got)
	}
	if strings.Count(got, "?") != 6 {
		t.Fatalf("expected six placeholders in %q", got)
	}
}

func TestFindUnnotifiedNoTargets(t *testing.T) {
	subs, err := newTestStore().FindUnnotified(context.Background(), nil)
	if err != nil || subs != nil {
		t.Fatalf("expected empty result without a query, got %v %v", subs, err)
	}
}

func TestClaimQueryGuardsPriorState(t *testing.T) {
	q := newQueries("outbox", "subscriptions")
	for _, clause := range []string{"status = ?", "attempt_count = ?", "next_retry_at IS NULL OR next_retry_at <= ?"} {
		if !strings.Contains(q.claim, clause) {
			t.Fatalf("claim query missing %q: %s", clause, q.claim)
		}
	}
}
