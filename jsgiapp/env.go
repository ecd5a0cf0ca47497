package jsgiapp

import (
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	base() BaseEnvironment
}

// BaseEnvironment contains the variables every application reads. Embed this in your custom
// environment struct.
type BaseEnvironment struct {
	Host         string        `env:"JSGI_HOST"`
	Port         int           `env:"JSGI_PORT" envDefault:"8080"`
	ServiceName  string        `env:"JSGI_SERVICE_NAME" envDefault:"jsgi"`
	LogLevel     zapcore.Level `env:"JSGI_LOG_LEVEL" envDefault:"info"`
	OtelExporter string        `env:"JSGI_OTEL_EXPORTER" envDefault:"none"`

	Charset        string        `env:"JSGI_CHARSET" envDefault:"utf-8"`
	ContentType    string        `env:"JSGI_CONTENT_TYPE" envDefault:"text/html"`
	AsyncTimeout   time.Duration `env:"JSGI_ASYNC_TIMEOUT" envDefault:"30s"`
	RequestTimeout time.Duration `env:"JSGI_REQUEST_TIMEOUT" envDefault:"60s"`
	MaxRetries     int           `env:"JSGI_MAX_RETRIES" envDefault:"3"`

	Mountpoint   string `env:"JSGI_MOUNTPOINT" envDefault:"/"`
	StaticDir    string `env:"JSGI_STATIC_DIR"`
	RoutesFile   string `env:"JSGI_ROUTES_FILE"`
	ErrorDetails bool   `env:"JSGI_ERROR_DETAILS" envDefault:"true"`
	MetricsPath  string `env:"JSGI_METRICS_PATH" envDefault:"/metrics"`
	HealthPath   string `env:"JSGI_HEALTH_PATH" envDefault:"/healthz"`

	SessionCookie string        `env:"JSGI_SESSION_COOKIE" envDefault:"jsgi_session"`
	SessionTTL    time.Duration `env:"JSGI_SESSION_TTL" envDefault:"30m"`
}

func (e BaseEnvironment) base() BaseEnvironment { return e }

var _ Environment = BaseEnvironment{}

// DotEnvFile is loaded by [ParseEnv] when it exists. Variables already set in the process
// environment take precedence.
var DotEnvFile = ".env"

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return e, errors.Wrapf(err, "failed to load %s", DotEnvFile)
		}

		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}

		if b := e.base(); b.Port < 0 || b.Port > 65535 {
			return e, errors.Newf("invalid JSGI_PORT: %d", b.Port)
		}
		return e, nil
	}
}
