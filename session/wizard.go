package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
)

// Page renders one step of a [Wizard]. A page that moves the flow with Next, Back or Goto and
// returns no response is followed by a redirect to the wizard, so the target step renders
// from a fresh GET.
type Page func(ctx context.Context, req *jsgi.Request, flow *Flow) (*jsgi.Response, error)

// CompleteFunc is called when the flow moves past the last page. The collected data is
// removed from the session afterwards.
type CompleteFunc func(ctx context.Context, req *jsgi.Request, data map[string]any) (*jsgi.Response, error)

// ErrNoSession is returned when a wizard runs without [Middleware].
var ErrNoSession = errors.New("session: no session in context")

// Wizard is a multi-step form flow. The current step and the data gathered so far live in
// the client's session, so every step is an ordinary request.
type Wizard struct {
	name     string
	pages    []Page
	complete CompleteFunc
}

// NewWizard inits a wizard. The name scopes the state in the session.
func NewWizard(name string, complete CompleteFunc, pages ...Page) *Wizard {
	if len(pages) == 0 {
		panic("session: wizard " + name + " without pages")
	}
	return &Wizard{name: name, pages: pages, complete: complete}
}

// state is what a wizard keeps in the session.
type state struct {
	mu   sync.Mutex
	step int
	data map[string]any
}

func (w *Wizard) key() string { return "wizard:" + w.name }

func (w *Wizard) state(sess *Session) *state {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st, ok := sess.values[w.key()].(*state)
	if !ok {
		st = &state{data: map[string]any{}}
		sess.values[w.key()] = st
	}
	return st
}

// Action returns the wizard as an action so it can be registered on a module.
func (w *Wizard) Action() jsgi.Action {
	return func(ctx context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
		return w.ServeJSGI(ctx, req)
	}
}

// ServeJSGI renders the current step.
func (w *Wizard) ServeJSGI(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
	sess := From(ctx)
	if sess == nil {
		return nil, ErrNoSession
	}

	st := w.state(sess)
	st.mu.Lock()
	defer st.mu.Unlock()

	flow := &Flow{step: st.step, data: st.data, pages: len(w.pages)}
	resp, err := w.pages[flow.step](ctx, req, flow)
	if err != nil {
		return nil, err
	}
	st.step = flow.step

	if flow.step >= len(w.pages) {
		sess.Delete(w.key())
		if w.complete == nil {
			return jsgi.Redirect(req.Path()), nil
		}
		return w.complete(ctx, req, flow.data)
	}

	if resp == nil {
		if !flow.moved {
			return nil, errors.Newf("session: page %d of wizard %q returned no response", flow.step, w.name)
		}
		loc := req.Path()
		if req.QueryString != "" {
			loc += "?" + req.QueryString
		}
		return jsgi.RedirectWith(http.StatusSeeOther, loc), nil
	}
	return resp, nil
}

// Reset forgets the progress of the client's flow.
func (w *Wizard) Reset(ctx context.Context) {
	if sess := From(ctx); sess != nil {
		sess.Delete(w.key())
	}
}

// Flow is the handle a page uses to read and steer the wizard.
type Flow struct {
	step  int
	pages int
	moved bool
	data  map[string]any
}

// Step returns the zero-based index of the current page.
func (f *Flow) Step() int { return f.step }

// Get returns a value collected by an earlier step.
func (f *Flow) Get(key string) (any, bool) {
	v, ok := f.data[key]
	return v, ok
}

// Set records a value for later steps and the completion.
func (f *Flow) Set(key string, v any) { f.data[key] = v }

// Next moves to the following page, or completes the wizard after the last one.
func (f *Flow) Next() { f.Goto(f.step + 1) }

// Back moves to the previous page. It stays on the first page.
func (f *Flow) Back() { f.Goto(max(f.step-1, 0)) }

// Goto moves to page i, which is clamped to the valid range. Moving past the last page
// completes the wizard.
func (f *Flow) Goto(i int) {
	f.step = min(max(i, 0), f.pages)
	f.moved = true
}
