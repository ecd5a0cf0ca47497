package jsgiapp

import (
	"context"
	"net/http"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	Registry  *Registry
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithMiddleware installs m on every request, inside the standard stack.
func WithMiddleware(m ...jsgi.Middleware) Option {
	return func(c *AppConfig) {
		c.Middleware = append(c.Middleware, m...)
	}
}

// WithModule makes mod available to the routes file under name.
func WithModule(name string, mod *jsgi.Module) Option {
	return func(c *AppConfig) {
		c.Registry.Module(name, mod)
	}
}

// WithNamedMiddleware makes m available to the routes file under name.
func WithNamedMiddleware(name string, m jsgi.Middleware) Option {
	return func(c *AppConfig) {
		c.Registry.Middleware(name, m)
	}
}

// NewApp creates a batteries-included app with dependency injection.
//
// The routing function can request any types that are provided via fx options. At minimum,
// it should accept *jsgi.Dispatcher for mounting modules. It may be nil when all routes come
// from the routes file.
//
// Example:
//
//	jsgiapp.NewApp[Env](func(d *jsgi.Dispatcher, b *Books) {
//	    d.Mount("/books", b.Module(), "books")
//	},
//	    jsgiapp.WithFx(fx.Provide(NewBooks)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](routing, opts...)...),
	}
}

// FxOptions returns the fx options that make up the app, so tests can build the same graph.
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	cfg := AppConfig{Registry: NewRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 16+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(jsgi.NewDispatcher),
		fx.Provide(NewMetricsRegistry),
		fx.Provide(func(e E) session.Store { return session.NewMemoryStore(e.base().SessionTTL) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewHTTPTransport),
		fx.Provide(NewHTTPClient),
		fx.Provide(func(e E, d *jsgi.Dispatcher, t http.RoundTripper) *Runtime[E] {
			return NewRuntime(e, d, t)
		}),
		fx.Supply(cfg.ServerConfig),
		fx.Supply(cfg.Registry),
		fx.Provide(NewServer),
		fx.Invoke(startServerHook),
		fx.Invoke(applyRoutesFile),
	}...)
	if routing != nil {
		baseOpts = append(baseOpts, fx.Invoke(routing))
	}

	return append(baseOpts, cfg.FxOptions...)
}

// NewMetricsRegistry inits the registry served on the metrics path, with the Go runtime and
// process collectors.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// applyRoutesFile mounts the routes of JSGI_ROUTES_FILE, when configured.
func applyRoutesFile(env Environment, d *jsgi.Dispatcher, reg *Registry, logger *zap.Logger) error {
	path := env.base().RoutesFile
	if path == "" {
		return nil
	}

	rt, err := LoadRouting(path)
	if err != nil {
		return err
	}
	if err := rt.Apply(d, reg); err != nil {
		return err
	}

	logger.Info("mounted routes file", zap.String("path", path), zap.Int("routes", len(rt.Routes)))
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application with the given context.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
