package otelmetrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter kinds accepted by NewProvider.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ErrUnknownExporter is returned by NewProvider for an exporter kind it does not know.
var ErrUnknownExporter = errors.New("otelmetrics: unknown exporter")

// ProviderConfig selects how the provider exports what a Recorder records.
type ProviderConfig struct {
	ServiceName string
	Environment string
	// Exporter is one of ExporterNone, ExporterStdout or ExporterOTLP.
	Exporter string
	Interval time.Duration
	// Writer receives stdout exports. Defaults to os.Stderr.
	Writer       io.Writer
	OTLPEndpoint string
	OTLPInsecure bool
}

// NewProvider builds an SDK meter provider that periodically pushes to the configured exporter.
// With ExporterNone the provider aggregates without a reader. The caller must Shutdown the provider
// to flush the last interval.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdkmetric.MeterProvider, error) {
	res := sdkresource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	)
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		var readerOpts []sdkmetric.PeriodicReaderOption
		if cfg.Interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

func newExporter(ctx context.Context, cfg ProviderConfig) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil
	case ExporterStdout, "":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("otelmetrics: stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLP:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otelmetrics: otlp exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
}
