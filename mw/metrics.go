package mw

import (
	"context"
	"strconv"
	"time"

	"github.com/advdv/jsgi"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics returns middleware that records request counts, dispatch latency and the number of
// async responses on reg.
func Metrics(reg prometheus.Registerer) jsgi.Middleware {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jsgi",
		Name:      "requests_total",
		Help:      "Dispatched requests by method and status code.",
	}, []string{"method", "code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jsgi",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent in dispatch, until a response value or error was returned.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	async := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jsgi",
		Name:      "async_responses_total",
		Help:      "Responses that were handed to an async handle.",
	})
	reg.MustRegister(requests, latency, async)

	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			start := time.Now()
			resp, err := next.ServeJSGI(ctx, req)
			latency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			code := "error"
			switch {
			case err != nil:
				if c := jsgi.CodeOf(err); c != jsgi.CodeUnknown {
					code = strconv.Itoa(int(c))
				}
			case resp == nil:
			case resp.Async() != nil:
				code = "async"
				async.Inc()
			default:
				code = strconv.Itoa(resp.Status)
			}
			requests.WithLabelValues(req.Method, code).Inc()

			return resp, err
		})
	}
}
