package jsgi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultAsyncTimeout is how long an async response may stay open when not configured.
	DefaultAsyncTimeout = 30 * time.Second
	// DefaultMaxRetries bounds how often one request is redispatched after a retry signal.
	DefaultMaxRetries = 3
	// DefaultContentType is set on responses that carry a body but no Content-Type.
	DefaultContentType = "text/html"
)

// Hooks observe the request lifecycle. OnResponse always runs before the response is
// committed, also when the response was produced from an error.
type Hooks struct {
	OnRequest  func(ctx context.Context, req *Request)
	OnResponse func(ctx context.Context, req *Request, resp *Response)
}

// ServerConfig configures a [Server]. Zero values select the defaults.
type ServerConfig struct {
	Charset     string
	ContentType string

	// ScriptName is the path the application is mounted at. It is moved from PathInfo to
	// ScriptName so generated paths keep the mountpoint.
	ScriptName string

	// AsyncTimeout is the time an async response may stay open. Negative disables the timeout.
	AsyncTimeout time.Duration

	// MaxRetries bounds redispatching after a retry signal. Negative disables retries.
	MaxRetries int

	Hooks  Hooks
	Logger Logger
}

// Server adapts a [Handler] to the standard library. It builds the request view, dispatches
// it, turns errors into responses and commits the result. Async responses keep the serving
// goroutine parked until they are closed, time out or the client goes away.
type Server struct {
	app  Handler
	cfg  ServerConfig
	logs Logger
}

// NewServer inits a server for app.
func NewServer(app Handler, cfg ServerConfig) *Server {
	if cfg.Charset == "" {
		cfg.Charset = DefaultCharset
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if cfg.AsyncTimeout == 0 {
		cfg.AsyncTimeout = DefaultAsyncTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = NewStdLogger(nil)
	}
	cfg.ScriptName = strings.TrimRight(cfg.ScriptName, "/")

	return &Server{app: app, cfg: cfg, logs: cfg.Logger}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ex := NewStdExchange(w, r)
	req := NewRequest(r, ex, s.cfg.Charset)
	req.contentType = s.cfg.ContentType
	if prefix := s.cfg.ScriptName; prefix != "" && (req.PathInfo == prefix || strings.HasPrefix(req.PathInfo, prefix+"/")) {
		req = req.withPrefix(prefix)
	}

	if s.cfg.Hooks.OnRequest != nil {
		s.cfg.Hooks.OnRequest(ctx, req)
	}

	resp := s.respond(ctx, req)
	if s.cfg.Hooks.OnResponse != nil {
		s.cfg.Hooks.OnResponse(ctx, req, resp)
	}

	if handle := resp.Async(); handle != nil {
		s.await(ctx, handle)
		return
	}

	if bodyAllowed(resp.Status) && !resp.Headers.Has("Content-Type") {
		resp.Headers.Set("Content-Type", s.cfg.ContentType)
	}
	if err := Commit(ex, resp, s.cfg.Charset); err != nil {
		s.logs.LogCommitError(err)
	}
}

// respond runs the dispatch, redoing it for retry signals, and never returns nil.
func (s *Server) respond(ctx context.Context, req *Request) *Response {
	for attempt := 0; ; attempt++ {
		resp, err := s.serve(ctx, req)
		if err == nil && resp == nil {
			err = errors.New("jsgi: handler returned neither a response nor an error")
		}
		if err == nil {
			return resp
		}

		var re *RetryError
		if errors.As(err, &re) {
			if attempt < s.cfg.MaxRetries {
				req.Mode = re.Mode
				continue
			}
			err = errors.Wrapf(err, "gave up after %d retries", attempt)
		}

		return s.errorResponse(err)
	}
}

// serve calls the app. A panic becomes an error so the hooks and the error fallback still
// see the request; [http.ErrAbortHandler] keeps panicking.
func (s *Server) serve(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if r == http.ErrAbortHandler { //nolint:errorlint
			panic(r)
		}

		if perr, ok := r.(error); ok {
			resp, err = nil, errors.Wrap(perr, "panic")
		} else {
			resp, err = nil, errors.Newf("panic: %v", r)
		}
	}()

	return s.app.ServeJSGI(ctx, req)
}

// errorResponse is the fallback for errors no middleware turned into a response.
func (s *Server) errorResponse(err error) *Response {
	if resp, ok := ControlFlowResponse(err); ok {
		return resp
	}

	code := CodeOf(err)
	if code == CodeUnknown {
		s.logs.LogUnhandledError(err)
		code = CodeInternalServerError
	}

	resp := Text(http.StatusText(int(code)))
	resp.Status = int(code)
	return resp
}

// await hands the exchange to the async response and parks until it is finished.
func (s *Server) await(ctx context.Context, handle *AsyncResponse) {
	cont := handle.suspend(s.cfg.AsyncTimeout, s.logs)
	if cont == nil {
		return
	}

	select {
	case <-cont.Done():
	case <-ctx.Done():
		handle.abort()
		<-cont.Done()
	}

	if cont.Forced() {
		// abort the connection so the client cannot mistake the output for a complete response
		panic(http.ErrAbortHandler)
	}
}
