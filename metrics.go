package unlocknotify

import "time"

// Metrics captures dispatcher-level telemetry.
type Metrics interface {
	// ObserveRunDuration records the time taken by one dispatch run.
	ObserveRunDuration(duration time.Duration)
	// AddEnqueued increments the count of tasks created by discovery.
	AddEnqueued(count int)
	// AddSent increments the count of delivered tasks.
	AddSent(count int)
	// AddRetries increments the count of failed attempts that will be retried.
	AddRetries(count int)
	// AddDead increments the count of tasks that became terminally failed.
	AddDead(count int)
	// AddStoreErrors increments the count of store writes that aborted a task.
	AddStoreErrors(count int)
	// SetPending updates the current pending task count.
	SetPending(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveRunDuration implements Metrics.
func (NopMetrics) ObserveRunDuration(time.Duration) {}

// AddEnqueued implements Metrics.
func (NopMetrics) AddEnqueued(int) {}

// AddSent implements Metrics.
func (NopMetrics) AddSent(int) {}

// AddRetries implements Metrics.
func (NopMetrics) AddRetries(int) {}

// AddDead implements Metrics.
func (NopMetrics) AddDead(int) {}

// AddStoreErrors implements Metrics.
func (NopMetrics) AddStoreErrors(int) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(int) {}
