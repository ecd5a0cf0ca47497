package mw

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
)

// Recover returns middleware that turns panics of inner handlers into errors, so the error
// page renders them. Aborts through [http.ErrAbortHandler] keep panicking.
func Recover() jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (resp *jsgi.Response, err error) {
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

			return next.ServeJSGI(ctx, req)
		})
	}
}

// RequestDeadline returns middleware that bounds the context of synchronous dispatch to d.
// The deadline ends when a lazily produced body is closed. Handlers that give up because of
// the deadline result in a 503.
func RequestDeadline(d time.Duration) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)

			resp, err := next.ServeJSGI(ctx, req)
			if err != nil {
				cancel()
				if errors.Is(err, context.DeadlineExceeded) && jsgi.CodeOf(err) == jsgi.CodeUnknown {
					return nil, jsgi.NewError(jsgi.CodeServiceUnavailable, err)
				}
				return nil, err
			}

			if resp == nil || resp.Async() != nil || resp.Body == nil {
				cancel() // async responses outlive the dispatch
				return resp, nil
			}

			resp.Body = &cancelBody{Body: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelBody struct {
	jsgi.Body
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.Body.Close()
}

// Finite keeps the marker of the wrapped body visible.
func (b *cancelBody) Finite() bool {
	fb, ok := b.Body.(jsgi.FiniteBody)
	return ok && fb.Finite()
}
