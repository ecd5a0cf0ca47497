// Package jsgiapptest provides test helpers for jsgiapp applications.
//
// It constructs the identical DI graph as [jsgiapp.NewApp] but uses [fxtest.App] which fails
// the test immediately on DI errors.
//
// Example:
//
//	jsgiapptest.SetBaseEnv(t, 18081)
//	app := jsgiapptest.New[jsgiapp.BaseEnvironment](t, routing)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package jsgiapptest

import (
	"testing"

	"github.com/advdv/jsgi/jsgiapp"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing jsgiapp applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [jsgiapp.NewApp].
func New[E jsgiapp.Environment](t testing.TB, routing any, opts ...jsgiapp.Option) *App {
	return &App{App: fxtest.New(t, jsgiapp.FxOptions[E](routing, opts...)...)}
}
