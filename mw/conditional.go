package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
)

// ConditionalGet returns middleware that adds an ETag to successful GET and HEAD responses
// and answers 304 Not Modified when it matches the If-None-Match header. The tag is the
// body's digest: bodies implementing [jsgi.Digester] provide it themselves, other finite
// bodies are buffered to compute it. Streaming bodies are left alone.
func ConditionalGet() jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			resp, err := next.ServeJSGI(ctx, req)
			if err != nil || resp == nil || resp.Async() != nil || resp.Status != http.StatusOK {
				return resp, err
			}
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return resp, nil
			}

			etag := resp.Headers.Get("ETag")
			if etag == "" {
				digest, ok, err := digestOf(resp)
				if err != nil {
					return nil, err
				}
				if !ok {
					return resp, nil
				}
				etag = `"` + digest + `"`
			}

			if !etagMatches(req.Header("If-None-Match"), etag) {
				resp.Headers.Set("ETag", etag)
				return resp, nil
			}

			if err := resp.Body.Close(); err != nil {
				return nil, errors.Wrap(err, "close unmodified body")
			}

			hdr := resp.Headers.Clone()
			hdr.Unset("Content-Length")
			hdr.Set("ETag", etag)
			return jsgi.NewResponse(http.StatusNotModified, hdr, nil), nil
		})
	}
}

func digestOf(resp *jsgi.Response) (string, bool, error) {
	switch body := resp.Body.(type) {
	case jsgi.Digester:
		digest, err := body.Digest()
		return digest, err == nil, errors.Wrap(err, "digest body")
	case jsgi.FiniteBody:
		if !body.Finite() {
			return "", false, nil
		}
		db := jsgi.NewDigestBody(body)
		resp.Body = db
		digest, err := db.Digest()
		return digest, err == nil, errors.Wrap(err, "digest body")
	}
	return "", false, nil
}

// etagMatches implements the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}

	etag = strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
