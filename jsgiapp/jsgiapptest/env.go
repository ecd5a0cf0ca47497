package jsgiapptest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [jsgiapp.BaseEnvironment] env vars via
// t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets the [jsgiapp.BaseEnvironment] env vars to test defaults. Port is required
// because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - JSGI_HOST: "127.0.0.1"
//   - JSGI_SERVICE_NAME: "test"
//   - JSGI_LOG_LEVEL: "warn"
//   - JSGI_OTEL_EXPORTER: "none"
//   - JSGI_MOUNTPOINT: "/"
//   - JSGI_ASYNC_TIMEOUT: "5s"
//
// Use the returned [Env] to override individual values:
//
//	jsgiapptest.SetBaseEnv(t, 18085).Mountpoint("/app").RoutesFile("testdata/routes.yaml")
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("JSGI_PORT", strconv.Itoa(port))
	t.Setenv("JSGI_HOST", "127.0.0.1")
	t.Setenv("JSGI_SERVICE_NAME", "test")
	t.Setenv("JSGI_LOG_LEVEL", "warn")
	t.Setenv("JSGI_OTEL_EXPORTER", "none")
	t.Setenv("JSGI_MOUNTPOINT", "/")
	t.Setenv("JSGI_ASYNC_TIMEOUT", "5s")
	t.Setenv("JSGI_STATIC_DIR", "")
	t.Setenv("JSGI_ROUTES_FILE", "")
	return &Env{t: t}
}

// Set overrides any variable.
func (e *Env) Set(name, value string) *Env {
	e.t.Helper()
	e.t.Setenv(name, value)
	return e
}

// Mountpoint overrides JSGI_MOUNTPOINT.
func (e *Env) Mountpoint(path string) *Env { return e.Set("JSGI_MOUNTPOINT", path) }

// RoutesFile overrides JSGI_ROUTES_FILE.
func (e *Env) RoutesFile(path string) *Env { return e.Set("JSGI_ROUTES_FILE", path) }

// StaticDir overrides JSGI_STATIC_DIR.
func (e *Env) StaticDir(dir string) *Env { return e.Set("JSGI_STATIC_DIR", dir) }

// ErrorDetails overrides JSGI_ERROR_DETAILS.
func (e *Env) ErrorDetails(on bool) *Env { return e.Set("JSGI_ERROR_DETAILS", strconv.FormatBool(on)) }
