package mw

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/advdv/jsgi"
)

// ErrorPageConfig configures [ErrorPage].
type ErrorPageConfig struct {
	// Detailed renders the error message and its stack trace into the page.
	Detailed bool

	// Logger is informed about errors that carry no status code.
	Logger jsgi.Logger
}

// ErrorPage returns middleware that renders errors returned by inner handlers as an HTML
// page. Errors created with [jsgi.NewError] keep their status, everything else becomes a 500.
// Retry, redirect and not-found signals are returned unchanged.
func ErrorPage(cfg ErrorPageConfig) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			resp, err := next.ServeJSGI(ctx, req)
			if err == nil || jsgi.IsControlFlow(err) {
				return resp, err
			}

			code := jsgi.CodeOf(err)
			if code == jsgi.CodeUnknown {
				code = jsgi.CodeInternalServerError
				if cfg.Logger != nil {
					cfg.Logger.LogUnhandledError(err)
				}
			}

			return errorPage(int(code), err, cfg.Detailed), nil
		})
	}
}

func errorPage(status int, err error, detailed bool) *jsgi.Response {
	title := fmt.Sprintf("%d %s", status, http.StatusText(status))

	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body><h1>")
	b.WriteString(title)
	b.WriteString("</h1>")
	if detailed {
		b.WriteString(`<p class="message">`)
		b.WriteString(html.EscapeString(err.Error()))
		b.WriteString(`</p><pre class="stack">`)
		b.WriteString(html.EscapeString(fmt.Sprintf("%+v", err)))
		b.WriteString("</pre>")
	}
	b.WriteString("</body></html>")

	resp := jsgi.HTML(b.String())
	resp.Status = status
	return resp
}
