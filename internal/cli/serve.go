package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/internal/example"
	"github.com/advdv/jsgi/jsgiapp"
	"github.com/advdv/jsgi/mw"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	flags := serveCmd.Flags()
	flags.String("host", "", "interface to listen on (JSGI_HOST)")
	flags.IntP("port", "p", 8080, "port to listen on (JSGI_PORT)")
	flags.StringP("mountpoint", "m", "/", "path the application is mounted at (JSGI_MOUNTPOINT)")
	flags.StringP("static-dir", "s", "", "directory to serve static files from (JSGI_STATIC_DIR)")
	flags.StringP("routes", "r", "", "routes file to mount modules from (JSGI_ROUTES_FILE)")
	flags.String("log-level", "info", "debug, info, warn or error (JSGI_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
}

// flagEnv maps flags to the variables they override.
var flagEnv = map[string]string{
	"host":       "JSGI_HOST",
	"port":       "JSGI_PORT",
	"mountpoint": "JSGI_MOUNTPOINT",
	"static-dir": "JSGI_STATIC_DIR",
	"routes":     "JSGI_ROUTES_FILE",
	"log-level":  "JSGI_LOG_LEVEL",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyFlags(cmd.Flags()); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return newApp(os.Getenv("JSGI_ROUTES_FILE") == "").Start(ctx)
	},
}

// applyFlags exports explicitly set flags, so they win over the environment and .env file.
func applyFlags(flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		name, ok := flagEnv[f.Name]
		if !ok || err != nil {
			return
		}
		err = errors.Wrapf(os.Setenv(name, f.Value.String()), "set %s", name)
	})
	return err
}

func newApp(withExamples bool) *jsgiapp.App {
	opts := []jsgiapp.Option{
		jsgiapp.WithNamedMiddleware("gzip", mw.Gzip()),
		jsgiapp.WithNamedMiddleware("conditional", mw.ConditionalGet()),
	}
	for name, mod := range example.Modules() {
		opts = append(opts, jsgiapp.WithModule(name, mod))
	}

	var routing any
	if withExamples {
		routing = mountExamples
	}
	return jsgiapp.NewApp[jsgiapp.BaseEnvironment](routing, opts...)
}

func mountExamples(d *jsgi.Dispatcher, rt *jsgiapp.Runtime[jsgiapp.BaseEnvironment]) {
	for name, mod := range example.Modules() {
		d.Mount("/"+name, mod, name)
	}
	d.Mount("/relay", example.Relay(rt), "relay")
	d.Mount("/", example.Hello(), "root")
}
