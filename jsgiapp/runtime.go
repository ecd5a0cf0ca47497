package jsgiapp

import (
	"net/http"

	"github.com/advdv/jsgi"
	"github.com/carlmjohnson/requests"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into module constructors via fx instead of pulling from context.
//
// Example:
//
//	type Books struct {
//	    rt *jsgiapp.Runtime[Env]
//	}
//
//	func (b *Books) show(ctx context.Context, req *jsgi.Request, args ...string) (*jsgi.Response, error) {
//	    edit, _ := b.rt.Reverse("books", "edit", args[0])
//	    var cover Cover
//	    err := b.rt.NewRequest().BaseURL(b.rt.Env().CoversURL).Path(args[0]).ToJSON(&cover).Fetch(ctx)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env        E
	dispatcher *jsgi.Dispatcher
	transport  http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, d *jsgi.Dispatcher, transport http.RoundTripper) *Runtime[E] {
	return &Runtime[E]{env: env, dispatcher: d, transport: transport}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Reverse returns the path of an action on a named route, including the mountpoint.
func (r *Runtime[E]) Reverse(name, action string, args ...string) (string, error) {
	path, err := r.dispatcher.Reverse(name, action, args...)
	if err != nil {
		return "", err
	}

	if mp := mountpoint(r.env.base().Mountpoint); mp != "/" {
		path = mp + path
	}
	return path, nil
}

// NewRequest returns a request builder whose calls are traced as children of the current
// span, when the context passed to Fetch carries one.
func (r *Runtime[E]) NewRequest() *requests.Builder {
	return newRequestBuilder(r.transport, r.env.base().ServiceName)
}
