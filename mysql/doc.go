// Package mysql provides the durable task outbox and subscription store on MySQL 8.0+.
//
// Every task transition is one UPDATE guarded by the expected prior state:
//   - Claim increments attempt_count only when status, attempt_count and next_retry_at still match
//   - MarkSent and RecordFailure only touch pending rows
//   - CompleteDelivery marks the task sent and the subscription notified in one READ COMMITTED transaction
//
// A UNIQUE (subscription_id, target_id) key keeps one task per subscription and target.
// See Schema for the DDL. Open the *sql.DB with parseTime=true.
package mysql
