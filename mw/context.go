package mw

import (
	"context"

	"github.com/advdv/jsgi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey is the key type for context values.
type ctxKey int

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyRequestID
)

// WithLogger returns middleware that makes logs available to handlers through [Log].
func WithLogger(logs *zap.Logger) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			return next.ServeJSGI(ContextWithLogger(ctx, logs), req)
		})
	}
}

// ContextWithLogger returns a context that carries logs.
func ContextWithLogger(ctx context.Context, logs *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logs)
}

// Log returns the request-scoped logger with trace and request id fields. Without
// [WithLogger] upstream it returns a no-op logger.
func Log(ctx context.Context) *zap.Logger {
	logs, ok := ctx.Value(ctxKeyLogger).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}

	fields := traceFields(ctx)
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return logs.With(fields...)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
