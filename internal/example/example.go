// Package example implements example modules in an outside package. The CLI mounts them when
// no routes file is given.
package example

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/mw"
	"github.com/advdv/jsgi/session"
	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Modules returns the example modules by name.
func Modules() map[string]*jsgi.Module {
	return map[string]*jsgi.Module{
		"hello":  Hello(),
		"events": Events(time.Second),
		"signup": Signup(),
	}
}

// Hello greets.
func Hello() *jsgi.Module {
	return jsgi.NewModule().
		Action("index", func(ctx context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
			mw.Log(ctx).Debug("rendering hello", zap.String("path", req.Path()))
			return jsgi.HTML("<html><body><h1>Hello</h1></body></html>"), nil
		}).
		Action("greet", func(_ context.Context, req *jsgi.Request, args ...string) (*jsgi.Response, error) {
			name := "stranger"
			if len(args) > 0 {
				name = args[0]
			}
			params, err := req.Params()
			if err != nil {
				return nil, err
			}
			if s := params.String("name"); s != "" {
				name = s
			}
			return jsgi.HTML("<html><body><p>Hello, ", html.EscapeString(name), "!</p></body></html>"), nil
		}).
		Action("echo", func(_ context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
			params, err := req.Params()
			if err != nil {
				return nil, err
			}
			return jsgi.JSON(params)
		})
}

// Events streams a server-sent event every interval, as many as the count query parameter
// asks for.
func Events(interval time.Duration) *jsgi.Module {
	return jsgi.NewModule().
		Action("index", func(ctx context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
			count := 5
			if s := req.Query().String("count"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return nil, jsgi.NewError(jsgi.CodeBadRequest, errors.Newf("invalid event count %q", s))
				}
				count = n
			}

			handle := jsgi.NewAsyncResponse(req, jsgi.WithAutoFlush())
			if err := handle.Start(http.StatusOK, jsgi.NewHeaderMap(
				"Content-Type", "text/event-stream",
				"Cache-Control", "no-cache",
			)); err != nil {
				return nil, err
			}

			logs := mw.Log(ctx)
			go func() {
				defer handle.Close()

				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for i := 1; i <= count; i++ {
					if err := handle.WriteString(fmt.Sprintf("id: %d\ndata: tick %d\n\n", i, i)); err != nil {
						logs.Debug("event stream ended early", zap.Error(err))
						return
					}
					if i < count {
						<-ticker.C
					}
				}
			}()

			return handle.Response(), nil
		})
}

// Upstream builds outbound requests and paths of named routes.
type Upstream interface {
	Reverse(name, action string, args ...string) (string, error)
	NewRequest() *requests.Builder
}

// Relay calls the echo action of the hello route over HTTP, as any other client of this server
// would, and wraps the answer. The query parameters are passed along.
func Relay(up Upstream) *jsgi.Module {
	return jsgi.NewModule().
		Action("index", func(ctx context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
			path, err := up.Reverse("hello", "echo")
			if err != nil {
				return nil, err
			}

			call := up.NewRequest().BaseURL(req.Scheme + "://" + req.Host).Path(path)
			for k, vs := range req.Std().URL.Query() {
				call.Param(k, vs...)
			}

			var echoed map[string]any
			if err := call.ToJSON(&echoed).Fetch(ctx); err != nil {
				return nil, jsgi.NewError(jsgi.CodeBadGateway, errors.Wrapf(err, "relay to %s", path))
			}
			return jsgi.JSON(map[string]any{"relayed": echoed})
		})
}

// Signup is a two step form flow kept in the session.
func Signup() *jsgi.Module {
	field := func(name, label string) session.Page {
		return func(_ context.Context, req *jsgi.Request, flow *session.Flow) (*jsgi.Response, error) {
			if req.Method == http.MethodPost {
				params, err := req.PostParams()
				if err != nil {
					return nil, err
				}
				if params.String("back") != "" {
					flow.Back()
					return nil, nil
				}
				if v := params.String(name); v != "" {
					flow.Set(name, v)
					flow.Next()
					return nil, nil
				}
			}

			prev, _ := flow.Get(name)
			value, _ := prev.(string)
			return jsgi.HTML(fmt.Sprintf(`<html><body><form method="post">
<label>%s <input name="%s" value="%s"></label>
<button>next</button> <button name="back" value="1">back</button>
</form></body></html>`, html.EscapeString(label), name, html.EscapeString(value))), nil
		}
	}

	wiz := session.NewWizard("signup",
		func(_ context.Context, _ *jsgi.Request, data map[string]any) (*jsgi.Response, error) {
			return jsgi.HTML(fmt.Sprintf("<html><body><p>Welcome %s, we will write to %s.</p></body></html>",
				html.EscapeString(fmt.Sprint(data["name"])), html.EscapeString(fmt.Sprint(data["email"])))), nil
		},
		field("name", "Your name"),
		field("email", "Your email"))

	return jsgi.NewModule().Action("index", wiz.Action())
}
