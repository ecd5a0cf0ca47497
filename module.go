package jsgi

import (
	"context"
	"sort"

	"github.com/samber/lo"
)

// IndexAction is the action selected when no path segment remains.
const IndexAction = "index"

// Action handles a request that was resolved to it. Remaining path segments are passed as
// URL-decoded positional arguments.
type Action func(ctx context.Context, req *Request, args ...string) (*Response, error)

// Module is an explicit registry of actions, and of sub-modules that own a path segment.
// Modules are built once at startup and are not safe for concurrent modification.
type Module struct {
	actions map[string]Action
	subs    map[string]*Module
}

// NewModule inits an empty module.
func NewModule() *Module {
	return &Module{actions: map[string]Action{}, subs: map[string]*Module{}}
}

// Action registers fn under name and returns the module for chaining.
func (m *Module) Action(name string, fn Action) *Module {
	if fn == nil {
		panic("jsgi: nil action " + name)
	}
	m.actions[name] = fn
	return m
}

// Sub registers a sub-module that handles the path segment name.
func (m *Module) Sub(name string, sub *Module) *Module {
	if sub == nil {
		panic("jsgi: nil sub-module " + name)
	}
	m.subs[name] = sub
	return m
}

// Lookup returns the action registered under name.
func (m *Module) Lookup(name string) (Action, bool) {
	fn, ok := m.actions[name]
	return fn, ok
}

// Child returns the sub-module registered under name.
func (m *Module) Child(name string) (*Module, bool) {
	sub, ok := m.subs[name]
	return sub, ok
}

// Actions returns the sorted names of all actions.
func (m *Module) Actions() []string {
	names := lo.Keys(m.actions)
	sort.Strings(names)
	return names
}

func (m *Module) hasIndex() bool {
	_, ok := m.actions[IndexAction]
	return ok
}
