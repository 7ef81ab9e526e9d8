package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

// ExporterType selects where spans are sent.
type ExporterType string

const (
	NoneExporter     ExporterType = "none"
	ConsoleExporter  ExporterType = "console"
	OTLPHTTPExporter ExporterType = "otlpHttp"

	EnvTraceExporter = "RELEASEKIT_TELEMETRY_TRACE_EXPORTER"
	EnvHTTPEndpoint  = "RELEASEKIT_TELEMETRY_TRACE_EXPORTER_HTTP_ENDPOINT"
	EnvInsecure      = "RELEASEKIT_TELEMETRY_TRACE_EXPORTER_INSECURE_ENDPOINT"
)

// Options configure the trace exporter.
type Options struct {
	// Writer receives the spans of the console exporter; it defaults to stderr.
	Writer     io.Writer
	AppName    string
	AppVersion string
	Exporter   ExporterType
	Endpoint   string
	Insecure   bool
}

// OptionsFromEnv reads the exporter settings from RELEASEKIT_TELEMETRY_* variables.
func OptionsFromEnv(appName, appVersion string, getenv func(string) string) Options {
	exporter := ExporterType(getenv(EnvTraceExporter))
	if exporter == "" {
		exporter = NoneExporter
	}

	return Options{
		AppName:    appName,
		AppVersion: appVersion,
		Exporter:   exporter,
		Endpoint:   getenv(EnvHTTPEndpoint),
		Insecure:   getenv(EnvInsecure) == "true",
	}
}

// MissingEndpointError is returned when the OTLP exporter has no endpoint.
type MissingEndpointError struct{}

func (MissingEndpointError) Error() string {
	return "the OTLP trace exporter requires an endpoint"
}

func (MissingEndpointError) Hint() string {
	return "set " + EnvHTTPEndpoint + ", e.g. localhost:4318"
}

// UnknownExporterError is returned for an unsupported exporter type.
type UnknownExporterError string

func (err UnknownExporterError) Error() string {
	return "unknown trace exporter " + string(err)
}

func (err UnknownExporterError) Hint() string {
	return "set " + EnvTraceExporter + " to none, console or otlpHttp"
}

// Setup registers the global tracer provider. The returned function flushes and stops it; it is
// safe to call when no exporter was configured.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	exporter, err := newExporter(ctx, opts)
	if err != nil || exporter == nil {
		return func(context.Context) error { return nil }, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.AppName),
			semconv.ServiceVersion(opts.AppVersion),
		),
	)
	if err != nil {
		return nil, errors.New(err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", NoneExporter:
		return nil, nil
	case ConsoleExporter:
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}

		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, errors.New(err)
		}

		return exporter, nil
	case OTLPHTTPExporter:
		if opts.Endpoint == "" {
			return nil, errors.New(MissingEndpointError{})
		}

		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}

		exporter, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, errors.New(err)
		}

		return exporter, nil
	}

	return nil, errors.New(UnknownExporterError(opts.Exporter))
}
