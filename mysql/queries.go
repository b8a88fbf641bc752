package mysql

import "fmt"

const (
	taskColumns = "id, kind, subscription_id, target_id, payload, status, attempt_count, " +
		"last_error, next_retry_at, created_at, updated_at, sent_at"
	subscriptionColumns = "id, subscriber_id, address, target_kind, target_id, notified, created_at"
	pairGrowth          = 6
)

type queries struct {
	insertTask          string
	selectEligible      string
	selectEligibleLimit string
	selectTask          string
	claim               string
	markSent            string
	lockAttempts        string
	recordFailure       string
	countPending        string
	failExhausted       string
	failUndecodable     string

	upsertSubscription      string
	selectSubscriptionByKey string
	markNotified            string
	deleteSubscription      string
	listSubscriptions       string
	// findUnnotifiedPrefix is completed by buildFindUnnotified.
	findUnnotifiedPrefix string
}

func newQueries(outbox, subs string) queries {
	eligible := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND attempt_count < ? "+
			"AND (next_retry_at IS NULL OR next_retry_at <= ?) ORDER BY id ASC",
		taskColumns,
		outbox,
	)

	return queries{
		insertTask: fmt.Sprintf(
			"INSERT INTO %s (id, kind, subscription_id, target_id, payload, status, attempt_count, created_at, updated_at) "+
				"VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)",
			outbox,
		),
		selectEligible:      eligible,
		selectEligibleLimit: eligible + " LIMIT ?",
		selectTask:          fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", taskColumns, outbox),
		claim: fmt.Sprintf(
			"UPDATE %s SET attempt_count = attempt_count + 1, next_retry_at = ?, updated_at = ? "+
				"WHERE id = ? AND status = ? AND attempt_count = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			outbox,
		),
		markSent: fmt.Sprintf(
			"UPDATE %s SET status = ?, sent_at = ?, next_retry_at = NULL, updated_at = ? WHERE id = ? AND status = ?",
			outbox,
		),
		lockAttempts: fmt.Sprintf("SELECT status, attempt_count FROM %s WHERE id = ? FOR UPDATE", outbox),
		recordFailure: fmt.Sprintf(
			"UPDATE %s SET last_error = ?, status = ?, updated_at = ? WHERE id = ?",
			outbox,
		),
		countPending: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", outbox),
		failExhausted: fmt.Sprintf(
			"UPDATE %s SET status = ?, last_error = COALESCE(last_error, ?), updated_at = ? "+
				"WHERE status = ? AND attempt_count >= ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			outbox,
		),
		failUndecodable: fmt.Sprintf(
			"UPDATE %s SET status = ?, last_error = ?, next_retry_at = NULL, updated_at = ? WHERE id = ? AND status = ?",
			outbox,
		),

		upsertSubscription: fmt.Sprintf(
			"INSERT INTO %s (id, subscriber_id, address, target_kind, target_id, notified, created_at) "+
				"VALUES (?, ?, ?, ?, ?, 0, ?) ON DUPLICATE KEY UPDATE id = id",
			subs,
		),
		selectSubscriptionByKey: fmt.Sprintf(
			"SELECT %s FROM %s WHERE subscriber_id = ? AND target_kind = ? AND target_id = ?",
			subscriptionColumns,
			subs,
		),
		markNotified: fmt.Sprintf("UPDATE %s SET notified = 1 WHERE id = ?", subs),
		deleteSubscription: fmt.Sprintf(
			"DELETE FROM %s WHERE subscriber_id = ? AND target_kind = ? AND target_id = ?",
			subs,
		),
		listSubscriptions: fmt.Sprintf(
			"SELECT %s FROM %s WHERE subscriber_id = ? ORDER BY id ASC",
			subscriptionColumns,
			subs,
		),
		findUnnotifiedPrefix: fmt.Sprintf(
			"SELECT %s FROM %s WHERE notified = 0 AND (target_kind, target_id) IN (",
			subscriptionColumns,
			subs,
		),
	}
}

// buildFindUnnotified appends one (?, ?) row constructor per target.
func (q queries) buildFindUnnotified(count int) string {
	buf := make([]byte, 0, len(q.findUnnotifiedPrefix)+count*pairGrowth+32)
	buf = append(buf, q.findUnnotifiedPrefix...)
	for i := 0; i < count; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, "(?, ?)"...)
	}
	buf = append(buf, ") ORDER BY id ASC"...)

	return string(buf)
}
