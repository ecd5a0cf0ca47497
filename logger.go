package jsgi

import (
	"log"
	"sync/atomic"
	"testing"
	"time"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledError(err error)
	LogCommitError(err error)
	LogAsyncTimeout(path string, after time.Duration)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledError(err error) {
	l.Logger.Printf("jsgi: unhandled error: %s", err)
}

func (l stdLogger) LogCommitError(err error) {
	l.Logger.Printf("jsgi: error while committing response: %s", err)
}

func (l stdLogger) LogAsyncTimeout(path string, after time.Duration) {
	l.Logger.Printf("jsgi: async response for %s timed out after %s", path, after)
}

// NewStdLogger adapts a standard library logger. A nil logger uses [log.Default].
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledError int64
	NumLogCommitError    int64
	NumLogAsyncTimeout   int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledError, 1)
	l.tb.Logf("jsgi: unhandled error: %s", err)
}

func (l *TestLogger) LogCommitError(err error) {
	atomic.AddInt64(&l.NumLogCommitError, 1)
	l.tb.Logf("jsgi: error while committing response: %s", err)
}

func (l *TestLogger) LogAsyncTimeout(path string, after time.Duration) {
	atomic.AddInt64(&l.NumLogAsyncTimeout, 1)
	l.tb.Logf("jsgi: async response for %s timed out after %s", path, after)
}

var _ Logger = &TestLogger{}
