// Package email holds Notifier adapters: Amazon SES v2, a log-only sender for local runs, and a
// wrapper adding an outbound rate limit and a per-send timeout.
package email
