package mw

import (
	"context"
	"regexp"

	"github.com/advdv/jsgi"
	"github.com/dchest/uniuri"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// inbound ids are only trusted when they look harmless
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

// AssignRequestID returns middleware that gives every request an id. A well-formed id sent by
// the client is kept, otherwise a random one is generated. The id is echoed in the response.
func AssignRequestID() jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			id := req.Header(RequestIDHeader)
			if !validRequestID.MatchString(id) {
				id = uniuri.NewLen(20)
			}

			resp, err := next.ServeJSGI(context.WithValue(ctx, ctxKeyRequestID, id), req)
			if resp != nil && resp.Async() == nil {
				resp.Headers.Set(RequestIDHeader, id)
			}
			return resp, err
		})
	}
}

// RequestID returns the id assigned by [AssignRequestID], or the empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
