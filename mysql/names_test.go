package mysql

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeTableName(t *testing.T) {
	valid := []string{"notification_outbox", "app.notification_outbox", "OUTBOX_1"}
	for _, name := range valid {
		if _, err := sanitizeTableName(name); err != nil {
			t.Fatalf("expected valid name %q: %v", name, err)
		}
	}

	invalid := []string{"outbox;drop", "outbox-1", "app..outbox", "a.b.c", "app.outbox;", strings.Repeat("x", 65)}
	for _, name := range invalid {
		if _, err := sanitizeTableName(name); !errors.Is(err, ErrInvalidTableName) {
			t.Fatalf("expected invalid name %q, got %v", name, err)
		}
	}
	if _, err := sanitizeTableName(""); !errors.Is(err, ErrTableNameRequired) {
		t.Fatalf("expected ErrTableNameRequired, got %v", err)
	}
}

func TestIndexSuffix(t *testing.T) {
	if got := indexSuffix("app.subscriptions"); got != "subscriptions" {
		t.Fatalf("unexpected suffix %q", got)
	}
	if got := indexSuffix("subscriptions"); got != "subscriptions" {
		t.Fatalf("unexpected suffix %q", got)
	}
}
