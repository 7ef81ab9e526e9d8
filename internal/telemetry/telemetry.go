// Package telemetry wraps function execution in OpenTelemetry spans.
//
// Setup registers an exporter chosen by RELEASEKIT_TELEMETRY_TRACE_EXPORTER. Without one
// the global no-op provider is used and Collect only invokes fn.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/gruntwork-io/releasekit"

// Collect runs fn inside a span named `name`, recording attrs and any returned error.
func Collect(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))

	for key, value := range attrs {
		switch val := value.(type) {
		case string:
			kvs = append(kvs, attribute.String(key, val))
		case int:
			kvs = append(kvs, attribute.Int(key, val))
		case int64:
			kvs = append(kvs, attribute.Int64(key, val))
		case bool:
			kvs = append(kvs, attribute.Bool(key, val))
		case float64:
			kvs = append(kvs, attribute.Float64(key, val))
		case []string:
			kvs = append(kvs, attribute.StringSlice(key, val))
		default:
			kvs = append(kvs, attribute.String(key, fmt.Sprintf("%v", val)))
		}
	}

	return kvs
}
