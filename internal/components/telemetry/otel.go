package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	setupTimeout    = 15 * time.Second
	exporterTimeout = 3 * time.Second
	metricInterval  = 5 * time.Second
)

// Endpoint is where one signal is exported to. A signal with neither endpoint
// set stays on the otel no-op provider.
type Endpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e Endpoint) protocol() string {
	switch {
	case e.GrpcEndpoint != "":
		return "grpc"
	case e.HttpEndpoint != "":
		return "http"
	default:
		return ""
	}
}

type OtlpConfig struct {
	Traces  Endpoint `json:"traces"`
	Metrics Endpoint `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

var ErrAmbiguousEndpoint = errors.New("only one of grpc_endpoint and http_endpoint may be set")

func (c Config) Validate() error {
	var errs []error
	if c.Otlp.Traces.GrpcEndpoint != "" && c.Otlp.Traces.HttpEndpoint != "" {
		errs = append(errs, fmt.Errorf("otlp traces: %w", ErrAmbiguousEndpoint))
	}
	if c.Otlp.Metrics.GrpcEndpoint != "" && c.Otlp.Metrics.HttpEndpoint != "" {
		errs = append(errs, fmt.Errorf("otlp metrics: %w", ErrAmbiguousEndpoint))
	}
	return errors.Join(errs...)
}

// Telemetry holds the providers Setup installed. Either may be nil.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes and stops every installed provider.
func (t Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Setup installs the global tracer and meter providers for every signal that has
// an endpoint. An empty config installs nothing.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	err := config.Validate()
	if err != nil {
		return Telemetry{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return Telemetry{}, fmt.Errorf("otel resource: %w", err)
	}

	var out Telemetry
	if config.Otlp.Traces.protocol() != "" {
		exporter, err := traceExporter(ctx, config.Otlp.Traces)
		if err != nil {
			return Telemetry{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.TracerProvider = trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(out.TracerProvider)
	}

	if config.Otlp.Metrics.protocol() != "" {
		exporter, err := metricExporter(ctx, config.Otlp.Metrics)
		if err != nil {
			return Telemetry{}, errors.Join(fmt.Errorf("metric exporter: %w", err), out.Shutdown(ctx))
		}
		out.MeterProvider = metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(metricInterval))),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(out.MeterProvider)
	}

	return out, nil
}

// newExporter calls the constructor matching the endpoint's protocol.
func newExporter[E any](
	ctx context.Context,
	signal string,
	e Endpoint,
	overGrpc func(context.Context, Endpoint) (E, error),
	overHttp func(context.Context, Endpoint) (E, error),
) (E, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	slog.Info("otlp exporter", "signal", signal, "protocol", e.protocol(), "headers", len(e.Headers))
	if e.protocol() == "grpc" {
		return overGrpc(ctx, e)
	}
	return overHttp(ctx, e)
}

func traceExporter(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
	return newExporter(ctx, "traces", e,
		func(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
			return otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
				otlptracegrpc.WithHeaders(e.Headers),
			)
		},
		func(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
			return otlptracehttp.New(ctx,
				otlptracehttp.WithEndpointURL(e.HttpEndpoint),
				otlptracehttp.WithHeaders(e.Headers),
			)
		},
	)
}

func metricExporter(ctx context.Context, e Endpoint) (metric.Exporter, error) {
	return newExporter(ctx, "metrics", e,
		func(ctx context.Context, e Endpoint) (metric.Exporter, error) {
			return otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
				otlpmetricgrpc.WithHeaders(e.Headers),
			)
		},
		func(ctx context.Context, e Endpoint) (metric.Exporter, error) {
			return otlpmetrichttp.New(ctx,
				otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
				otlpmetrichttp.WithHeaders(e.Headers),
			)
		},
	)
}
