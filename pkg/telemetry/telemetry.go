// Package telemetry configures OpenTelemetry tracing for the process.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrInitTelemetry wraps failures building the tracer provider.
var ErrInitTelemetry = errors.New("init telemetry failed")

// Options configures Init.
type Options struct {
	// ServiceName and Version populate the resource.
	ServiceName string
	Version     string
	Environment string

	// Endpoint is the OTLP/HTTP collector base URL, e.g.
	// "http://otel-collector:4318". Empty keeps spans in-process.
	Endpoint string

	// Exporter overrides the OTLP exporter. Tests pass an in-memory one.
	Exporter sdktrace.SpanExporter
}

// Provider owns the process tracer provider.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	Tracer         trace.Tracer
}

// Init builds a tracer provider, installs it and the W3C propagators as
// globals, and returns it for shutdown.
func Init(ctx context.Context, opts Options) (*Provider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "parkwise"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
			semconv.DeploymentEnvironmentName(opts.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: resource: %v", ErrInitTelemetry, err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	exp := opts.Exporter
	if exp == nil && opts.Endpoint != "" {
		exp, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(strings.TrimSuffix(opts.Endpoint, "/")+"/v1/traces"),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: otlp exporter: %v", ErrInitTelemetry, err)
		}
	}
	if exp != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		TracerProvider: tp,
		Tracer:         tp.Tracer(opts.ServiceName),
	}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	return p.TracerProvider.Shutdown(ctx)
}
