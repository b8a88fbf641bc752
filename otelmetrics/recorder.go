// Package otelmetrics records dispatcher telemetry through OpenTelemetry instruments.
package otelmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/velmie/unlocknotify"
)

// MeterName is the instrumentation scope of every instrument created by a Recorder.
const MeterName = "github.com/velmie/unlocknotify"

// Instrument names.
const (
	EnqueuedCounter    = "unlocknotify.tasks.enqueued"
	SentCounter        = "unlocknotify.tasks.sent"
	RetriesCounter     = "unlocknotify.tasks.retries"
	DeadCounter        = "unlocknotify.tasks.dead"
	StoreErrorsCounter = "unlocknotify.store.errors"
	RunDuration        = "unlocknotify.run.duration"
	PendingGauge       = "unlocknotify.tasks.pending"
)

var _ unlocknotify.Metrics = (*Recorder)(nil)

// Recorder implements unlocknotify.Metrics on top of an OpenTelemetry meter.
type Recorder struct {
	enqueued    metric.Int64Counter
	sent        metric.Int64Counter
	retries     metric.Int64Counter
	dead        metric.Int64Counter
	storeErrors metric.Int64Counter
	duration    metric.Float64Histogram
	pending     metric.Int64Gauge
}

// New creates the instruments on provider. A nil provider uses the global one.
func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(MeterName)

	r := &Recorder{}
	counters := []struct {
		name string
		desc string
		dst  *metric.Int64Counter
	}{
		{EnqueuedCounter, "Notification tasks created by discovery", &r.enqueued},
		{SentCounter, "Notification tasks delivered", &r.sent},
		{RetriesCounter, "Failed delivery attempts that will be retried", &r.retries},
		{DeadCounter, "Notification tasks that exhausted their attempts", &r.dead},
		{StoreErrorsCounter, "Store writes that aborted a delivery", &r.storeErrors},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("{task}"))
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	duration, err := meter.Float64Histogram(
		RunDuration,
		metric.WithDescription("Duration of one dispatch run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s histogram: %w", RunDuration, err)
	}
	r.duration = duration

	pending, err := meter.Int64Gauge(
		PendingGauge,
		metric.WithDescription("Pending notification tasks after the last drain"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s gauge: %w", PendingGauge, err)
	}
	r.pending = pending

	return r, nil
}

func (r *Recorder) ObserveRunDuration(duration time.Duration) {
	r.duration.Record(context.Background(), duration.Seconds())
}

func (r *Recorder) AddEnqueued(count int) { add(r.enqueued, count) }

func (r *Recorder) AddSent(count int) { add(r.sent, count) }

func (r *Recorder) AddRetries(count int) { add(r.retries, count) }

func (r *Recorder) AddDead(count int) { add(r.dead, count) }

func (r *Recorder) AddStoreErrors(count int) { add(r.storeErrors, count) }

func (r *Recorder) SetPending(count int) {
	r.pending.Record(context.Background(), int64(count))
}

func add(counter metric.Int64Counter, count int) {
	if count <= 0 {
		return
	}
	counter.Add(context.Background(), int64(count))
}
