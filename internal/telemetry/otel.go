package telemetry

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultEndpoint = "http://localhost:4318/v1/traces"

// InitTracer installs the global tracer provider exporting over OTLP/HTTP.
// The returned function flushes and stops it.
func InitTracer(ctx context.Context, serviceName, rawEndpoint string) (func(context.Context) error, error) {
	endpoint, path, insecure := parseEndpoint(rawEndpoint)

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath(path),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("OpenTelemetry initialized for service %s (exporting to %s%s)", serviceName, endpoint, path)
	return tp.Shutdown, nil
}

// parseEndpoint accepts a full URL or a bare host:port.
func parseEndpoint(raw string) (endpoint, path string, insecure bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultEndpoint
	}
	endpoint, path, insecure = "localhost:4318", "/v1/traces", true
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw, path, insecure
	}
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint, path, insecure
	}
	if u.Host != "" {
		endpoint = u.Host
	}
	if u.Path != "" && u.Path != "/" {
		path = u.Path
	}
	return endpoint, path, u.Scheme == "http"
}
