package jsgiapp

import (
	"time"

	"github.com/advdv/jsgi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment. JSGI_LOG_LEVEL controls
// the level (debug, info, warn, error).
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.base().LogLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledError(err error) {
	l.Logger.Error("unhandled error", zap.Error(err))
}

func (l zapLogger) LogCommitError(err error) {
	l.Logger.Error("error while committing response", zap.Error(err))
}

func (l zapLogger) LogAsyncTimeout(path string, after time.Duration) {
	l.Logger.Warn("async response timed out", zap.String("path", path), zap.Duration("after", after))
}

// NewJSGILogger adapts l for the server and the error page.
func NewJSGILogger(l *zap.Logger) jsgi.Logger {
	return zapLogger{l.Named("jsgi").Named("app")}
}
