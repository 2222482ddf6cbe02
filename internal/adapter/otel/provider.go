package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Config describes the telemetry identity of the service and where spans
// and metrics go.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       string
	// Insecure sends OTLP over plain HTTP.
	Insecure bool
}

// Providers owns the tracer and meter providers installed by Setup.
type Providers struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
}

// Shutdown flushes buffered telemetry. Both providers are shut down even if
// the first one fails.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		wrapErr("tracer shutdown", p.tracer.Shutdown(ctx)),
		wrapErr("meter shutdown", p.meter.Shutdown(ctx)),
	)
}

// Setup builds the providers for cfg and installs them as the global
// tracer, meter and propagator.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	spans, metrics, err := exporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	traceOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	meterOpts := []metric.Option{metric.WithResource(res)}
	// With no exporter spans are still created so trace ids reach the logs.
	if spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(spans))
	}
	if metrics != nil {
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(metrics)))
	}

	p := &Providers{
		tracer: trace.NewTracerProvider(traceOpts...),
		meter:  metric.NewMeterProvider(meterOpts...),
	}
	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func exporters(ctx context.Context, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil, nil

	case ExporterStdout:
		spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout span exporter: %w", err)
		}
		metrics, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return spans, metrics, nil

	case ExporterOTLP:
		var (
			traceOpts  []otlptracehttp.Option
			metricOpts []otlpmetrichttp.Option
		)
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		spans, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating otlp span exporter: %w", err)
		}
		metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		return spans, metrics, nil

	default:
		return nil, nil, fmt.Errorf("unsupported exporter %q (use %q, %q or %q)",
			cfg.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
	}
}

func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
