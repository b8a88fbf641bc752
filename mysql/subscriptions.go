package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/velmie/unlocknotify"
)

// Subscribe records that subscriberID wants to hear about target at address. Subscribing twice to the
// same target returns the existing subscription unchanged.
func (s *Store) Subscribe(ctx context.Context, subscriberID, address string, target unlocknotify.Target) (unlocknotify.Subscription, error) {
	if strings.TrimSpace(address) == "" {
		return unlocknotify.Subscription{}, unlocknotify.ErrAddressRequired
	}
	if _, err := unlocknotify.ParseTargetKind(string(target.Kind)); err != nil {
		return unlocknotify.Subscription{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return unlocknotify.Subscription{}, fmt.Errorf("unlocknotify mysql: generate id failed: %w", err)
	}
	if _, err := s.db.ExecContext(
		ctx,
		s.queries.upsertSubscription,
		id[:],
		subscriberID,
		address,
		target.Kind,
		target.ID,
		s.now(),
	); err != nil {
		return unlocknotify.Subscription{}, fmt.Errorf("unlocknotify mysql: insert subscription failed: %w", err)
	}

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, s.queries.selectSubscriptionByKey, subscriberID, target.Kind, target.ID))
	if err != nil {
		return unlocknotify.Subscription{}, err
	}

	return sub, nil
}

// Unsubscribe removes a subscription. Tasks already enqueued for it are kept.
func (s *Store) Unsubscribe(ctx context.Context, subscriberID string, target unlocknotify.Target) error {
	if _, err := s.db.ExecContext(ctx, s.queries.deleteSubscription, subscriberID, target.Kind, target.ID); err != nil {
		return fmt.Errorf("unlocknotify mysql: delete subscription failed: %w", err)
	}

	return nil
}

// Subscriptions lists the subscriptions of one subscriber.
func (s *Store) Subscriptions(ctx context.Context, subscriberID string) ([]unlocknotify.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.listSubscriptions, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("unlocknotify mysql: list subscriptions failed: %w", err)
	}

	return collectSubscriptions(rows)
}

// FindUnnotified implements unlocknotify.SubscriptionStore.
func (s *Store) FindUnnotified(ctx context.Context, targets []unlocknotify.Target) ([]unlocknotify.Subscription, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(targets)*2)
	for _, t := range targets {
		args = append(args, t.Kind, t.ID)
	}
	rows, err := s.db.QueryContext(ctx, s.queries.buildFindUnnotified(len(targets)), args...)
	if err != nil {
		return nil, fmt.Errorf("unlocknotify mysql: find unnotified failed: %w", err)
	}

	return collectSubscriptions(rows)
}

// MarkNotified implements unlocknotify.SubscriptionStore.
func (s *Store) MarkNotified(ctx context.Context, subscriptionID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, s.queries.markNotified, subscriptionID[:]); err != nil {
		return fmt.Errorf("unlocknotify mysql: mark notified failed: %w", err)
	}

	return nil
}

type subscriptionRows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

func collectSubscriptions(rows subscriptionRows) ([]unlocknotify.Subscription, error) {
	defer rows.Close()

	subs := make([]unlocknotify.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unlocknotify mysql: rows failed: %w", err)
	}

	return subs, nil
}

func scanSubscription(row rowScanner) (unlocknotify.Subscription, error) {
	var sub unlocknotify.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.SubscriberID,
		&sub.Address,
		&sub.Target.Kind,
		&sub.Target.ID,
		&sub.Notified,
		&sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sub, unlocknotify.ErrSubscriptionNotFound
		}

		return sub, fmt.Errorf("unlocknotify mysql: scan subscription failed: %w", err)
	}
	sub.CreatedAt = sub.CreatedAt.UTC()

	return sub, nil
}
