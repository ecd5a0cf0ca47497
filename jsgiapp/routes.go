package jsgiapp

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Routing is the routing table of a routes file:
//
//	middleware: [gzip, conditional]
//	routes:
//	  - pattern: /books
//	    module: books
//	    name: books
//	  - regexp: ^/[0-9]{4}/
//	    module: archive
type Routing struct {
	Middleware []string       `yaml:"middleware"`
	Routes     []RoutingEntry `yaml:"routes"`
}

// RoutingEntry mounts one registered module. Exactly one of Pattern and Regexp is set.
type RoutingEntry struct {
	Pattern string `yaml:"pattern"`
	Regexp  string `yaml:"regexp"`
	Module  string `yaml:"module"`
	Name    string `yaml:"name"`
}

// LoadRouting reads a routes file.
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read routes file")
	}

	var rt Routing
	if err := yaml.Unmarshal(data, &rt); err != nil {
		return nil, errors.Wrapf(err, "failed to decode routes file %s", path)
	}
	return &rt, nil
}

// Registry holds the modules and middleware a routes file may refer to by name.
type Registry struct {
	modules    map[string]*jsgi.Module
	middleware map[string]jsgi.Middleware
}

// NewRegistry inits an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]*jsgi.Module{}, middleware: map[string]jsgi.Middleware{}}
}

// Module registers mod under name.
func (r *Registry) Module(name string, mod *jsgi.Module) *Registry {
	r.modules[name] = mod
	return r
}

// Middleware registers m under name.
func (r *Registry) Middleware(name string, m jsgi.Middleware) *Registry {
	r.middleware[name] = m
	return r
}

// Apply installs the routing table on d. All names are resolved before d is touched, so an
// unknown name leaves the dispatcher unchanged.
func (rt *Routing) Apply(d *jsgi.Dispatcher, reg *Registry) error {
	mws := make([]jsgi.Middleware, 0, len(rt.Middleware))
	for _, name := range rt.Middleware {
		m, ok := reg.middleware[name]
		if !ok {
			return errors.Newf("unknown middleware: %q, got: %v", name, sortedKeys(reg.middleware))
		}
		mws = append(mws, m)
	}

	mounts := make([]func(), 0, len(rt.Routes))
	for i, entry := range rt.Routes {
		mod, ok := reg.modules[entry.Module]
		if !ok {
			return errors.Newf("route %d: unknown module: %q, got: %v", i, entry.Module, sortedKeys(reg.modules))
		}

		switch {
		case entry.Pattern != "" && entry.Regexp != "":
			return errors.Newf("route %d: pattern and regexp are mutually exclusive", i)
		case entry.Regexp != "":
			re, err := regexp.Compile(entry.Regexp)
			if err != nil {
				return errors.Wrapf(err, "route %d: invalid expression %q", i, entry.Regexp)
			}
			mounts = append(mounts, func() { d.MountRegexp(re, mod) })
		case !strings.HasPrefix(entry.Pattern, "/") && entry.Pattern != "":
			return errors.Newf("route %d: pattern must start with a slash: %q", i, entry.Pattern)
		case entry.Pattern != "":
			names := lo.Compact([]string{entry.Name})
			mounts = append(mounts, func() { d.Mount(entry.Pattern, mod, names...) })
		default:
			return errors.Newf("route %d: pattern or regexp is required", i)
		}
	}

	d.Use(mws...)
	for _, mount := range mounts {
		mount()
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
