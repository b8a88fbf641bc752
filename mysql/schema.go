package mysql

import (
	"fmt"
)

const outboxTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
	id BINARY(16) NOT NULL,
	kind VARCHAR(32) NOT NULL,
	subscription_id BINARY(16) NOT NULL,
	target_id VARCHAR(64) NOT NULL,
	payload JSON NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	attempt_count INT NOT NULL DEFAULT 0,
	last_error VARCHAR(1024) NULL,
	next_retry_at DATETIME(6) NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	sent_at DATETIME(6) NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_%[2]s_subscription_target (subscription_id, target_id),
	INDEX idx_%[2]s_status_retry (status, next_retry_at)
);`

const subscriptionTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
	id BINARY(16) NOT NULL,
	subscriber_id VARCHAR(128) NOT NULL,
	address VARCHAR(320) NOT NULL,
	target_kind VARCHAR(16) NOT NULL,
	target_id VARCHAR(64) NOT NULL,
	notified TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_%[2]s_subscriber_target (subscriber_id, target_kind, target_id),
	INDEX idx_%[2]s_target_notified (target_kind, target_id, notified)
);`

// OutboxSchema returns the DDL of the task table.
func OutboxSchema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(outboxTemplate, name, indexSuffix(name)), nil
}

// SubscriptionSchema returns the DDL of the subscription table.
func SubscriptionSchema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(subscriptionTemplate, name, indexSuffix(name)), nil
}

// Schema returns both CREATE TABLE statements separated by a blank line. Executing it in one call
// needs multiStatements=true in the DSN.
func Schema(outboxTable, subscriptionTable string) (string, error) {
	outbox, err := OutboxSchema(outboxTable)
	if err != nil {
		return "", err
	}
	subs, err := SubscriptionSchema(subscriptionTable)
	if err != nil {
		return "", err
	}

	return subs + "\n\n" + outbox, nil
}
