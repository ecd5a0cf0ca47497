package jsgi

import "context"

// Handler turns a request into a response value. Returning an error hands the problem to the
// middleware around it, see [IsControlFlow] for errors that are not failures.
type Handler interface {
	ServeJSGI(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// ServeJSGI implements the [Handler] interface.
func (f HandlerFunc) ServeJSGI(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware for cross-cutting concerns. It receives the next inner handler and may call it
// and return its result, post-process the response, or answer without calling it at all.
type Middleware func(Handler) Handler

// Compose takes the inner handler h and wraps it with middleware. The order is that of the Gorilla and Chi router.
// That is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided
// last will be the "inner most" wrapping (closest to the handler).
func Compose(h Handler, m ...Middleware) Handler {
	wrapped := h
	for i := len(m) - 1; i >= 0; i-- {
		wrapped = m[i](wrapped)
	}

	return wrapped
}
