package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceContext carries the identifiers stamped on every log line of a request.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns the TraceContext stored in ctx.
// Without one, it falls back to the active OpenTelemetry span, if any.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return &TraceContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
	}
	return nil
}
