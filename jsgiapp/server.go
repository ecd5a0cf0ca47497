package jsgiapp

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/mw"
	"github.com/advdv/jsgi/session"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)

	// Middleware is installed innermost, after the standard stack.
	Middleware []jsgi.Middleware
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Dispatcher *jsgi.Dispatcher
	Sessions   session.Store
	Logger     *zap.Logger
	Metrics    *prometheus.Registry
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server with all middleware configured. Routes are mounted on the
// dispatcher afterwards, by the routing function and the routes file.
func NewServer(params ServerParams, cfg ServerConfig) (*http.Server, error) {
	env := params.Env.base()
	logs := NewJSGILogger(params.Logger)

	params.Dispatcher.Use(
		mw.AssignRequestID(),
		mw.WithLogger(params.Logger.Named("app")),
		mw.AccessLog(params.Logger),
		mw.Metrics(params.Metrics),
		mw.Gzip(),
		mw.ConditionalGet(),
		mw.ErrorPage(mw.ErrorPageConfig{Detailed: env.ErrorDetails, Logger: logs}),
		mw.NotFound(nil),
		mw.Recover(),
		session.Middleware(params.Sessions, env.SessionCookie),
	)
	if env.ErrorDetails && env.LogLevel <= zap.DebugLevel {
		params.Dispatcher.Use(mw.LogInjection(env.LogLevel))
	}
	if env.RequestTimeout > 0 {
		params.Dispatcher.Use(mw.RequestDeadline(env.RequestTimeout))
	}
	if env.StaticDir != "" {
		if _, err := os.Stat(env.StaticDir); err != nil {
			return nil, errors.Wrap(err, "static directory")
		}
		params.Dispatcher.Use(mw.Static(os.DirFS(env.StaticDir)))
	}
	params.Dispatcher.Use(cfg.Middleware...)

	mount := mountpoint(env.Mountpoint)
	app := jsgi.NewServer(params.Dispatcher, jsgi.ServerConfig{
		Charset:      env.Charset,
		ContentType:  env.ContentType,
		ScriptName:   mount,
		AsyncTimeout: env.AsyncTimeout,
		MaxRetries:   env.MaxRetries,
		Logger:       logs,
	})

	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}

	mux := http.NewServeMux()
	mux.HandleFunc(env.HealthPath, healthHandler)
	mux.Handle(env.MetricsPath, promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	if mount == "/" {
		mux.Handle("/", app)
	} else {
		mux.Handle(mount, app)
		mux.Handle(mount+"/", app)
	}

	// Tracing is disabled for the probes to avoid noisy orphan traces.
	handler := withTracing(params.TracerProv, params.Propagator, env.ServiceName,
		env.HealthPath, env.MetricsPath)(mux)

	tc := TimeoutConfig{RequestTimeout: env.RequestTimeout, AsyncTimeout: env.AsyncTimeout}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              net.JoinHostPort(env.Host, strconv.Itoa(env.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}, nil
}

// startServerHook registers lifecycle hooks for the HTTP server. The listener is opened in
// OnStart so a taken port fails the start.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

// mountpoint normalises a mountpoint to a leading slash and no trailing one, "/" stays.
func mountpoint(p string) string {
	return "/" + strings.Trim(p, "/")
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
