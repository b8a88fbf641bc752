// Package unlocknotify notifies subscribers when time-gated targets unlock.
//
// Typical flow:
//  1. A schedule.Roster reports, purely from the current instant, which entities and regions are unlocked.
//  2. Dispatcher.Discover finds un-notified subscriptions to those targets and enqueues one outbox Task per
//     subscription, snapshotting the recipient address and the target's display data.
//  3. Dispatcher.Drain claims eligible tasks (attempt counted before delivery), renders the message and calls
//     the Notifier. On success the task is marked sent and the subscription notified; on failure the error is
//     recorded and the task retried with capped exponential backoff until MaxAttempts is reached.
//
// For the MySQL implementation of the stores see the mysql package; the memory package serves tests and
// local development.
package unlocknotify
