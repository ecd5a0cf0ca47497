package jsgi

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// route is one entry of the routing table. Exactly one of prefix and re is used, and exactly
// one of module and handler is set.
type route struct {
	pattern string
	prefix  string
	re      *regexp.Regexp
	module  *Module
	handler Handler
}

// match returns the matched part of path.
func (rt *route) match(path string) (string, bool) {
	if rt.re != nil {
		loc := rt.re.FindStringIndex(path)
		if loc == nil || loc[0] != 0 {
			return "", false
		}
		return path[:loc[1]], true
	}

	if !strings.HasPrefix(path, rt.prefix) {
		return "", false
	}
	if rest := path[len(rt.prefix):]; rest != "" && rest[0] != '/' {
		return "", false // "/books" must not match "/bookshelf"
	}
	return rt.prefix, true
}

// Dispatcher resolves requests against an ordered routing table. The first route whose
// pattern matches wins; the matched prefix moves from PathInfo to ScriptName and the rest of
// the path selects an action of the route's module.
type Dispatcher struct {
	routes   []*route
	reverser *Reverser

	middlewares struct {
		captured bool
		buffered []Middleware
	}

	once    sync.Once
	handler Handler
}

// NewDispatcher inits an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{reverser: NewReverser()}
}

// Use allows providing of middleware. The middleware wraps the whole dispatch, so it also sees
// the not-found outcome of requests that match no route.
func (d *Dispatcher) Use(mw ...Middleware) {
	if d.middlewares.captured {
		panic("jsgi: cannot call Use() after calling Mount")
	}
	d.middlewares.buffered = append(d.middlewares.buffered, mw...)
}

// Mount routes every request whose path starts with the pattern segments to module. An
// optional name makes the route available to [Dispatcher.Reverse].
func (d *Dispatcher) Mount(pattern string, module *Module, name ...string) {
	d.add(&route{pattern: pattern, prefix: cleanPrefix(pattern), module: module}, name...)
}

// MountRegexp routes requests whose path matches re at the start to module.
func (d *Dispatcher) MountRegexp(re *regexp.Regexp, module *Module) {
	d.add(&route{pattern: re.String(), re: re, module: module})
}

// MountHandler routes every request below pattern to h instead of a module.
func (d *Dispatcher) MountHandler(pattern string, h Handler, name ...string) {
	d.add(&route{pattern: pattern, prefix: cleanPrefix(pattern), handler: h}, name...)
}

func (d *Dispatcher) add(rt *route, name ...string) {
	d.middlewares.captured = true
	if rt.module == nil && rt.handler == nil {
		panic("jsgi: nil module for pattern " + rt.pattern)
	}
	if rt.re == nil && !strings.HasPrefix(rt.pattern, "/") {
		panic("jsgi: pattern must start with a slash: " + rt.pattern)
	}

	if len(name) > 0 {
		d.reverser.named(name[0], rt)
	}
	d.routes = append(d.routes, rt)
}

// Reverse builds the path of an action on a named route.
func (d *Dispatcher) Reverse(name, action string, args ...string) (string, error) {
	return d.reverser.Reverse(name, action, args...)
}

// ServeJSGI implements [Handler].
func (d *Dispatcher) ServeJSGI(ctx context.Context, req *Request) (*Response, error) {
	d.once.Do(func() {
		d.middlewares.captured = true
		d.handler = Compose(HandlerFunc(d.dispatch), d.middlewares.buffered...)
	})
	return d.handler.ServeJSGI(ctx, req)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (*Response, error) {
	for _, rt := range d.routes {
		prefix, ok := rt.match(req.PathInfo)
		if !ok {
			continue
		}

		sub := req.withPrefix(prefix)
		if rt.handler != nil {
			return rt.handler.ServeJSGI(ctx, sub)
		}
		return resolve(ctx, sub, rt.module)
	}

	return nil, NotFound(req.Path())
}

// resolve walks sub-modules along the path, then calls the selected action.
func resolve(ctx context.Context, req *Request, mod *Module) (*Response, error) {
	segs := splitSegments(req.PathInfo)
	for len(segs) > 0 {
		name, err := url.PathUnescape(segs[0])
		if err != nil {
			return nil, NotFound(req.Path())
		}
		child, ok := mod.Child(name)
		if !ok {
			break
		}

		if len(segs) == 1 && !strings.HasSuffix(req.PathInfo, "/") && child.hasIndex() {
			return nil, trailingSlashRedirect(req)
		}

		req = req.withPrefix("/" + segs[0])
		mod, segs = child, segs[1:]
	}

	name := IndexAction
	if len(segs) > 0 {
		var err error
		if name, err = url.PathUnescape(segs[0]); err != nil {
			return nil, NotFound(req.Path())
		}
		segs = segs[1:]
	}

	action, ok := mod.Lookup(name)
	if !ok {
		return nil, NotFound(req.Path())
	}

	args := make([]string, len(segs))
	for i, seg := range segs {
		arg, err := url.PathUnescape(seg)
		if err != nil {
			return nil, NewError(CodeBadRequest, errors.Wrapf(err, "decode path argument %q", seg))
		}
		args[i] = arg
	}

	return action(ctx, req, args...)
}

func trailingSlashRedirect(req *Request) error {
	loc := req.Path() + "/"
	if req.QueryString != "" {
		loc += "?" + req.QueryString
	}

	code := http.StatusPermanentRedirect
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		code = http.StatusMovedPermanently
	}
	return RedirectTo(code, loc)
}

// splitSegments splits a path remainder. A single trailing slash does not produce an empty
// segment.
func splitSegments(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func cleanPrefix(pattern string) string {
	return strings.TrimRight(pattern, "/")
}
