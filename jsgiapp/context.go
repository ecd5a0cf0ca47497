package jsgiapp

import (
	"context"

	"github.com/advdv/jsgi/mw"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Log returns a trace-correlated zap logger from the context.
func Log(ctx context.Context) *zap.Logger {
	return mw.Log(ctx)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
