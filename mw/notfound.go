package mw

import (
	"context"
	"net/http"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
)

// NotFound returns middleware that turns not-found and redirect signals into responses. The
// page handler renders the 404 body; when nil a minimal page is used.
func NotFound(page jsgi.Handler) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			resp, err := next.ServeJSGI(ctx, req)
			if err == nil {
				return resp, nil
			}

			var nfe *jsgi.NotFoundError
			if errors.As(err, &nfe) && page != nil {
				resp, err := page.ServeJSGI(ctx, req)
				if err != nil {
					return nil, errors.Wrap(err, "render not found page")
				}
				resp.Status = http.StatusNotFound
				return resp, nil
			}

			if resp, ok := jsgi.ControlFlowResponse(err); ok {
				return resp, nil
			}
			return nil, err
		})
	}
}
