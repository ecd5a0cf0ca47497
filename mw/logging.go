package mw

import (
	"bytes"
	"context"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/advdv/jsgi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLog returns middleware that logs one entry per dispatched request. For async
// responses the entry is written when the handle is returned, not when it is closed.
func AccessLog(logs *zap.Logger) jsgi.Middleware {
	logs = logs.Named("access")
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			start := time.Now()
			resp, err := next.ServeJSGI(ctx, req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.Path()),
				zap.Duration("duration", time.Since(start)),
			}
			if id := RequestID(ctx); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if req.Mode != "" {
				fields = append(fields, zap.String("mode", req.Mode))
			}

			switch {
			case err != nil:
				logs.Info("request ended with error", append(fields, zap.Error(err))...)
			case resp == nil:
				logs.Warn("request produced no response", fields...)
			case resp.Async() != nil:
				logs.Info("request suspended", append(fields, zap.Bool("async", true))...)
			default:
				logs.Info("request served", append(fields, zap.Int("status", resp.Status))...)
			}

			return resp, err
		})
	}
}

// LogInjection returns middleware that collects everything handlers log through [Log] while
// serving a request and splices it into HTML responses, right before the closing body tag.
// It is meant for development.
func LogInjection(level zapcore.LevelEnabler) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			sink := &logSink{}
			core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), sink, level)

			logs, ok := ctx.Value(ctxKeyLogger).(*zap.Logger)
			if !ok {
				logs = zap.NewNop()
			}
			logs = zap.New(zapcore.NewTee(logs.Core(), core))

			resp, err := next.ServeJSGI(ContextWithLogger(ctx, logs), req)
			if err != nil || resp == nil || resp.Async() != nil || resp.Body == nil {
				return resp, err
			}
			if !strings.HasPrefix(resp.Headers.Get("Content-Type"), "text/html") {
				return resp, nil
			}

			resp.Headers.Unset("Content-Length")
			resp.Body = jsgi.FilterBody(resp.Body, func(c jsgi.Chunk) (jsgi.Chunk, error) {
				if c.IsBinary() {
					return c, nil
				}
				s := c.String()
				i := strings.LastIndex(s, "</body>")
				if i < 0 {
					return c, nil
				}
				return jsgi.TextChunk(s[:i] + sink.render() + s[i:]), nil
			})
			return resp, nil
		})
	}
}

// logSink buffers encoded log entries of one request.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) Sync() error { return nil }

func (s *logSink) render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return ""
	}
	return `<pre class="jsgi-log">` + html.EscapeString(s.buf.String()) + "</pre>"
}
