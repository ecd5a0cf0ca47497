package jsgi

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// recordingExchange keeps everything written to it in memory.
type recordingExchange struct {
	mu        sync.Mutex
	status    int
	headers   HeaderMap
	body      bytes.Buffer
	committed bool
	flushes   int
	closes    int
	closed    bool
	writeErr  error
}

func newRecordingExchange() *recordingExchange {
	return &recordingExchange{status: 200}
}

func (e *recordingExchange) Input() io.Reader { return strings.NewReader("") }

func (e *recordingExchange) SetStatus(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = code
}

func (e *recordingExchange) AddHeader(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Add(name, value)
}

func (e *recordingExchange) Committed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed
}

func (e *recordingExchange) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writeErr != nil {
		return 0, e.writeErr
	}
	if e.closed {
		return 0, ErrExchangeClosed
	}
	e.committed = true
	return e.body.Write(p)
}

func (e *recordingExchange) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExchangeClosed
	}
	e.committed = true
	e.flushes++
	return nil
}

func (e *recordingExchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes++
	e.closed, e.committed = true, true
	return nil
}

func (e *recordingExchange) Suspend(timeout time.Duration, expire func()) Continuation {
	return newContinuation(timeout, expire)
}

func (e *recordingExchange) Body() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.body.String()
}

func (e *recordingExchange) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// countingBody counts how often it was closed.
type countingBody struct {
	Body
	closes   int
	closeErr error
}

func (b *countingBody) Close() error {
	b.closes++
	return b.closeErr
}

// Finite passes through so wrapping does not hide the marker of the inner body.
func (b *countingBody) Finite() bool {
	fb, ok := b.Body.(FiniteBody)
	return ok && fb.Finite()
}

func testRequest(ex Exchange) *Request {
	return &Request{
		Method:      "GET",
		PathInfo:    "/events",
		charset:     DefaultCharset,
		contentType: DefaultContentType,
		exchange:    ex,
		cache:       &requestCache{},
	}
}
