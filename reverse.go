package jsgi

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Reverser keeps track of named routes and allows building URLs to their actions.
type Reverser struct {
	routes map[string]*route
}

// NewReverser inits the reverser.
func NewReverser() *Reverser {
	return &Reverser{make(map[string]*route)}
}

// Reverse builds the path to action on the named route, with args as escaped trailing
// segments. An empty action or [IndexAction] without arguments yields the route's root.
func (r Reverser) Reverse(name, action string, args ...string) (string, error) {
	rt, ok := r.routes[name]
	if !ok {
		return "", fmt.Errorf("no route named: %q, got: %v", name, lo.Keys(r.routes)) //nolint:goerr113
	}

	if rt.re != nil {
		return "", fmt.Errorf("route %q is a regular expression and cannot be reversed", name) //nolint:goerr113
	}

	var b strings.Builder
	b.WriteString(rt.prefix)
	b.WriteString("/")
	if action == "" {
		action = IndexAction
	}
	if action == IndexAction && len(args) == 0 {
		return b.String(), nil
	}

	b.WriteString(url.PathEscape(action))
	for _, arg := range args {
		b.WriteString("/")
		b.WriteString(url.PathEscape(arg))
	}

	return b.String(), nil
}

// named registers rt under name, it panics when the name is taken.
func (r Reverser) named(name string, rt *route) {
	if _, exists := r.routes[name]; exists {
		panic(fmt.Sprintf("jsgi: route with name %q already exists", name))
	}
	r.routes[name] = rt
}
