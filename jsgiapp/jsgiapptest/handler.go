package jsgiapptest

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/advdv/jsgi"
)

// CallHandler serves req with h through a [jsgi.Server] with default settings and returns the
// recorded response. Unhandled errors are rendered the way the server renders them.
func CallHandler(h jsgi.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	jsgi.NewServer(h, jsgi.ServerConfig{}).ServeHTTP(rec, req)
	return rec
}

// CallAction is like [CallHandler] for a single action, which receives args.
func CallAction(action jsgi.Action, req *http.Request, args ...string) *httptest.ResponseRecorder {
	return CallHandler(jsgi.HandlerFunc(func(ctx context.Context, r *jsgi.Request) (*jsgi.Response, error) {
		return action(ctx, r, args...)
	}), req)
}
