package mw

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/advdv/jsgi"
	"github.com/klauspost/compress/gzip"
)

// compressible content types
var compressible = regexp.MustCompile(`^text|xml|json|javascript`)

// Gzip returns middleware that compresses textual responses for clients that accept gzip.
// Async responses, already encoded responses and responses without a body are not touched.
func Gzip() jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			resp, err := next.ServeJSGI(ctx, req)
			if err != nil || resp == nil || resp.Async() != nil || resp.Body == nil {
				return resp, err
			}

			resp.Headers.Add("Vary", "Accept-Encoding")
			ct := resp.Headers.Get("Content-Type")
			if !acceptsGzip(req.Header("Accept-Encoding")) ||
				resp.Headers.Has("Content-Encoding") ||
				!compressible.MatchString(ct) ||
				resp.Status < 200 || resp.Status == http.StatusNoContent || resp.Status == http.StatusNotModified {
				return resp, nil
			}

			// text chunks must be encoded before compressing, so the charset is pinned
			charset := jsgi.CharsetOf(ct, "")
			if charset == "" {
				charset = jsgi.DefaultCharset
				resp.Headers.Set("Content-Type", ct+"; charset="+charset)
			}

			resp.Headers.Unset("Content-Length")
			resp.Headers.Set("Content-Encoding", "gzip")
			resp.Body = jsgi.TransformBody(resp.Body, newGzipTransformer(charset))
			return resp, nil
		})
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}

		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		return q > 0
	}
	return false
}

type gzipTransformer struct {
	charset string
	buf     bytes.Buffer
	zw      *gzip.Writer
}

func newGzipTransformer(charset string) *gzipTransformer {
	t := &gzipTransformer{charset: charset}
	t.zw = gzip.NewWriter(&t.buf)
	return t
}

func (t *gzipTransformer) Transform(c jsgi.Chunk) ([]jsgi.Chunk, error) {
	b, err := c.Bytes(t.charset)
	if err != nil {
		return nil, err
	}
	if _, err := t.zw.Write(b); err != nil {
		return nil, err
	}
	return t.drain(), nil
}

func (t *gzipTransformer) Finish() ([]jsgi.Chunk, error) {
	if err := t.zw.Close(); err != nil {
		return nil, err
	}
	return t.drain(), nil
}

func (t *gzipTransformer) drain() []jsgi.Chunk {
	if t.buf.Len() == 0 {
		return nil
	}
	out := []jsgi.Chunk{jsgi.BinaryChunk(bytes.Clone(t.buf.Bytes()))}
	t.buf.Reset()
	return out
}
