package jsgi

import (
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrIllegalState is returned when an async response operation is called in the wrong state.
	ErrIllegalState = errors.New("jsgi: illegal state")
	// ErrClosed is returned by operations on a closed async response. It matches
	// [ErrIllegalState] with errors.Is.
	ErrClosed = errors.Wrap(ErrIllegalState, "async response closed")
)

type asyncState int

const (
	stateNew asyncState = iota
	stateHeadersSent
	stateClosed
)

func (s asyncState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateHeadersSent:
		return "headers sent"
	default:
		return "closed"
	}
}

// AsyncOption configures an [AsyncResponse].
type AsyncOption func(*AsyncResponse)

// WithAutoFlush flushes the exchange after every write.
func WithAutoFlush() AsyncOption {
	return func(a *AsyncResponse) { a.autoflush = true }
}

// WithTimeout overrides the server's async timeout for this response.
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncResponse) { a.timeout = d }
}

// AsyncResponse is a response whose status, headers and body are written incrementally, from
// any goroutine, after the action that created it returned. All methods are serialised by one
// lock that also guards every access to the underlying exchange.
//
// A handle is returned from an action through [AsyncResponse.Response]. The server then
// suspends the exchange until [AsyncResponse.Close] is called or the timeout elapses, in which
// case the exchange is force closed and later calls fail with [ErrClosed]. Close is
// idempotent: only the first call closes the exchange.
type AsyncResponse struct {
	mu        sync.Mutex
	state     asyncState
	ex        Exchange
	cont      Continuation
	suspended bool
	autoflush bool
	timeout   time.Duration
	charset   string
	ctype     string
	path      string
	logs      Logger
}

// NewAsyncResponse creates an async response bound to the exchange of req.
func NewAsyncResponse(req *Request, opts ...AsyncOption) *AsyncResponse {
	a := &AsyncResponse{
		ex:      req.exchange,
		charset: req.charset,
		ctype:   req.contentType,
		path:    req.Path(),
		timeout: -1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Response returns the response value to return from an action.
func (a *AsyncResponse) Response() *Response {
	return &Response{Status: http.StatusOK, async: a}
}

// Start writes the status line and headers. It may only be called once, before any write.
func (a *AsyncResponse) Start(status int, headers HeaderMap) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateClosed:
		return ErrClosed
	case stateHeadersSent:
		return errors.Wrap(ErrIllegalState, "start called twice")
	}

	if status < 100 || status > 599 {
		return errors.Wrapf(ErrIllegalState, "invalid status %d", status)
	}

	if !headers.Has("Content-Type") && a.ctype != "" {
		headers = headers.Clone()
		headers.Set("Content-Type", a.ctype)
	}

	a.charset = CharsetOf(headers.Get("Content-Type"), a.charset)
	a.ex.SetStatus(status)
	headers.Each(func(name string, values []string) {
		for _, v := range values {
			a.ex.AddHeader(name, v)
		}
	})

	a.state = stateHeadersSent
	return nil
}

// Write appends a chunk to the body. Start must have been called.
func (a *AsyncResponse) Write(c Chunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writable(); err != nil {
		return err
	}

	b, err := c.Bytes(a.charset)
	if err != nil {
		return err
	}

	if _, err := a.ex.Write(b); err != nil {
		return a.fail(errors.Wrap(err, "write async response"))
	}

	if a.autoflush {
		if err := a.ex.Flush(); err != nil {
			return a.fail(errors.Wrap(err, "flush async response"))
		}
	}
	return nil
}

// WriteString writes a text chunk.
func (a *AsyncResponse) WriteString(s string) error { return a.Write(TextChunk(s)) }

// WriteBytes writes a binary chunk.
func (a *AsyncResponse) WriteBytes(b []byte) error { return a.Write(BinaryChunk(b)) }

// Flush pushes buffered bytes to the client without closing the response.
func (a *AsyncResponse) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writable(); err != nil {
		return err
	}
	if err := a.ex.Flush(); err != nil {
		return a.fail(errors.Wrap(err, "flush async response"))
	}
	return nil
}

// Close ends the response. It is legal in any state and safe to call from several goroutines;
// only the first call closes the exchange, later calls return nil.
func (a *AsyncResponse) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateClosed {
		return nil
	}
	return a.closeLocked(false)
}

// Closed reports whether the response was closed, by Close, an I/O error or a timeout.
func (a *AsyncResponse) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateClosed
}

func (a *AsyncResponse) writable() error {
	switch a.state {
	case stateNew:
		return errors.Wrap(ErrIllegalState, "write before start")
	case stateClosed:
		return ErrClosed
	}
	return nil
}

// fail closes after an I/O error so that no further writes reach the exchange.
func (a *AsyncResponse) fail(err error) error {
	if cerr := a.closeLocked(true); cerr != nil {
		return errors.CombineErrors(err, cerr)
	}
	return err
}

func (a *AsyncResponse) closeLocked(forced bool) error {
	a.state = stateClosed
	err := a.ex.Close()

	if a.cont != nil {
		if forced {
			a.cont.ForceClose()
		} else {
			a.cont.Resume()
		}
	}
	return err
}

// suspend hands the exchange over to the handle. It returns nil when the response was already
// closed and the exchange can be finalized right away.
func (a *AsyncResponse) suspend(timeout time.Duration, logs Logger) Continuation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.suspended {
		return a.cont
	}
	a.suspended = true
	a.logs = logs
	if a.timeout >= 0 {
		timeout = a.timeout
	}

	if a.state == stateClosed {
		return nil
	}

	a.cont = a.ex.Suspend(timeout, func() { a.expire(timeout) })
	return a.cont
}

// expire is called by the exchange when the timeout elapsed. The exchange force closes the
// continuation itself once this returns.
func (a *AsyncResponse) expire(after time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateClosed {
		return
	}
	if a.logs != nil {
		a.logs.LogAsyncTimeout(a.path, after)
	}

	a.state = stateClosed
	_ = a.ex.Close() // best effort, the connection is aborted anyway
}

// abort closes the response because the client went away.
func (a *AsyncResponse) abort() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateClosed {
		_ = a.closeLocked(true)
	}
}
