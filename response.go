package jsgi

import (
	"context"
	"fmt"
	"html"
	"net/http"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

// Response is the canonical result of a handler: status, headers and a body that is consumed
// exactly once by [Commit]. A response returned by [AsyncResponse.Response] is committed
// incrementally by its handle instead.
type Response struct {
	Status  int
	Headers HeaderMap
	Body    Body

	async *AsyncResponse
}

// NewResponse creates a response from its parts. A nil body means an empty body. The headers
// are copied.
func NewResponse(status int, headers HeaderMap, body Body) *Response {
	if body == nil {
		body = NewChunksBody()
	}
	return &Response{Status: status, Headers: headers.Clone(), Body: body}
}

// Async returns the async handle when the response is committed incrementally, or nil.
func (r *Response) Async() *AsyncResponse { return r.async }

// Text returns a 200 text/plain response.
func Text(body ...string) *Response {
	return newTextResponse("text/plain", body)
}

// HTML returns a 200 text/html response.
func HTML(body ...string) *Response {
	return newTextResponse("text/html", body)
}

func newTextResponse(contentType string, body []string) *Response {
	chunks := make([]Chunk, len(body))
	for i, s := range body {
		chunks[i] = TextChunk(s)
	}
	return NewResponse(http.StatusOK, NewHeaderMap("Content-Type", contentType), NewChunksBody(chunks...))
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON returns a 200 application/json response holding the encoding of v.
func JSON(v any) (*Response, error) {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json response")
	}
	return NewResponse(http.StatusOK,
		NewHeaderMap("Content-Type", "application/json"),
		NewChunksBody(BinaryChunk(b))), nil
}

// Redirect returns a 303 See Other response to location.
func Redirect(location string) *Response {
	return RedirectWith(http.StatusSeeOther, location)
}

// RedirectWith returns a redirect response with the given 3xx code.
func RedirectWith(code int, location string) *Response {
	body := fmt.Sprintf(`<html><body><p>See: <a href="%s">%s</a></p></body></html>`,
		html.EscapeString(location), html.EscapeString(location))
	return NewResponse(code, NewHeaderMap(
		"Location", location,
		"Content-Type", "text/html",
	), NewChunksBody(TextChunk(body)))
}

// NotFoundResponse returns a minimal 404 page.
func NotFoundResponse() *Response {
	r := HTML("<html><head><title>Not Found</title></head><body><h2>Not Found</h2></body></html>")
	r.Status = http.StatusNotFound
	return r
}

// Renderer renders named templates. Template semantics are up to the implementation.
type Renderer interface {
	Render(ctx context.Context, ref string, data any) (string, error)
}

// Skin renders a template through r into a 200 text/html response.
func Skin(ctx context.Context, r Renderer, ref string, data any) (*Response, error) {
	s, err := r.Render(ctx, ref, data)
	if err != nil {
		return nil, errors.Wrapf(err, "render %q", ref)
	}
	return HTML(s), nil
}
