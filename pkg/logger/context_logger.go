package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const connectionIDKey ctxKey = iota

// WithConnectionID stores the connection id handling the current event.
func WithConnectionID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connectionIDKey, connID)
}

func ConnectionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey).(string)
	return id
}

// FromContext enriches base with the connection id and the active trace id.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	var fields []interface{}

	if id := ConnectionIDFrom(ctx); id != "" {
		fields = append(fields, "connection_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, "trace_id", sc.TraceID().String())
	}

	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
