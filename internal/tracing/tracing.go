// Package tracing installs the OpenTelemetry tracer provider the engine and
// HTTP server report spans to.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "ledgermind"

// Options selects and configures the exporter.
type Options struct {
	Exporter string
	// Endpoint is the OTLP gRPC collector address. Empty uses
	// OTEL_EXPORTER_OTLP_ENDPOINT or the exporter default.
	Endpoint string
	Insecure bool
	// Writer receives stdout exporter output. Defaults to os.Stderr so span
	// dumps never mix with command output.
	Writer io.Writer
}

// Shutdown flushes and stops the installed provider.
type Shutdown func(context.Context) error

// Setup installs the W3C propagator and, unless the exporter is none, a
// batching tracer provider as the global provider.
func Setup(ctx context.Context, opts Options) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var exp sdktrace.SpanExporter
	var err error
	switch opts.Exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		var grpcOpts []otlptracegrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err = otlptracegrpc.New(ctx, grpcOpts...)
	default:
		return nil, fmt.Errorf("tracing.Setup: unknown exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("tracing.Setup: %s exporter: %w", opts.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
