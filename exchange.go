package jsgi

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrExchangeClosed is returned by an exchange that was closed.
var ErrExchangeClosed = errors.New("jsgi: exchange closed")

// Exchange is the connector side of one HTTP exchange. It is not safe for concurrent use:
// after an async response took ownership of it, the exchange is only touched while holding
// that response's lock.
type Exchange interface {
	Input() io.Reader
	SetStatus(code int)
	AddHeader(name, value string)
	Committed() bool
	Write(p []byte) (int, error)
	Flush() error
	Close() error

	// Suspend detaches the exchange from the handling goroutine. If timeout elapses before
	// the continuation is resumed, expire is called and the exchange is hard closed.
	Suspend(timeout time.Duration, expire func()) Continuation
}

// Continuation represents a suspended exchange.
type Continuation interface {
	// Resume finalizes the exchange normally.
	Resume()
	// ForceClose finalizes the exchange and aborts the connection.
	ForceClose()
	// Done is closed once the continuation was resumed or force closed.
	Done() <-chan struct{}
	// Forced reports whether the continuation ended through ForceClose.
	Forced() bool
}

// stdExchange implements [Exchange] on top of the standard library.
type stdExchange struct {
	w         http.ResponseWriter
	r         *http.Request
	rc        *http.ResponseController
	status    int
	committed bool
	closed    bool
}

// NewStdExchange wraps a standard library response writer.
func NewStdExchange(w http.ResponseWriter, r *http.Request) Exchange {
	return &stdExchange{w: w, r: r, rc: http.NewResponseController(w), status: http.StatusOK}
}

func (e *stdExchange) Input() io.Reader { return e.r.Body }

func (e *stdExchange) SetStatus(code int) { e.status = code }

func (e *stdExchange) AddHeader(name, value string) {
	e.w.Header().Add(name, value)
}

func (e *stdExchange) Committed() bool { return e.committed }

func (e *stdExchange) commit() {
	if !e.committed {
		e.committed = true
		e.w.WriteHeader(e.status)
	}
}

func (e *stdExchange) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrExchangeClosed
	}
	e.commit()
	return e.w.Write(p)
}

func (e *stdExchange) Flush() error {
	if e.closed {
		return ErrExchangeClosed
	}
	e.commit()

	err := e.rc.Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

func (e *stdExchange) Close() error {
	if e.closed {
		return nil
	}
	err := e.Flush()
	e.closed = true
	return err
}

// suspendGrace is added to the async timeout for the connection write deadline, so the
// timer and not the connection ends an expired exchange.
const suspendGrace = 5 * time.Second

// Suspend moves the write deadline of the connection past the async timeout, replacing the
// server's WriteTimeout. Without a timeout the deadline is cleared.
func (e *stdExchange) Suspend(timeout time.Duration, expire func()) Continuation {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout + suspendGrace)
	}
	// writers without deadline support keep whatever the server configured
	_ = e.rc.SetWriteDeadline(deadline)

	return newContinuation(timeout, expire)
}

// newContinuation arms a timer that calls expire and then force closes. A timeout of zero or
// less never expires.
func newContinuation(timeout time.Duration, expire func()) *continuation {
	c := &continuation{done: make(chan struct{})}
	if timeout > 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.timer = time.AfterFunc(timeout, func() {
			expire()
			c.ForceClose()
		})
	}
	return c
}

type continuation struct {
	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	ended  bool
	forced bool
}

func (c *continuation) end(forced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	c.ended, c.forced = true, forced
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.done)
}

func (c *continuation) Resume()               { c.end(false) }
func (c *continuation) ForceClose()           { c.end(true) }
func (c *continuation) Done() <-chan struct{} { return c.done }

func (c *continuation) Forced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forced
}
