package jsgiapp

import (
	"net/http"

	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport returns the round tripper actions use to call other services. Every call
// becomes a client span named after the upstream host, and the trace context travels along.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
		otelhttp.WithSpanNameFormatter(outboundSpanName),
	)
}

func outboundSpanName(_ string, r *http.Request) string {
	return "outbound " + r.Method + " " + r.URL.Host
}

// NewHTTPClient returns a client on transport t. Calls are bounded by JSGI_REQUEST_TIMEOUT so
// an action never waits on an upstream longer than its own request may take.
func NewHTTPClient(t http.RoundTripper, env Environment) *http.Client {
	return &http.Client{Transport: t, Timeout: env.base().RequestTimeout}
}

// newRequestBuilder identifies outbound calls by the service name.
func newRequestBuilder(t http.RoundTripper, service string) *requests.Builder {
	return requests.New().Transport(t).UserAgent(service)
}
