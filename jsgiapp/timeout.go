package jsgiapp

import "time"

// headerTimeout caps how long the server waits for request headers.
const headerTimeout = 5 * time.Second

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout bounds synchronous dispatch, see mw.RequestDeadline.
	RequestTimeout time.Duration

	// AsyncTimeout bounds how long an async response may keep the connection. Negative means
	// async responses are not bounded.
	AsyncTimeout time.Duration
}

// ServerTimeouts returns the http.Server timeout values. The write timeout leaves room for
// the slowest legal response, which is an async one when it outlasts synchronous dispatch.
// A zero value means no timeout.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	timeout := max(tc.RequestTimeout, 0)

	readHeaderTimeout = headerTimeout
	if timeout > 0 {
		readHeaderTimeout = min(timeout, headerTimeout)
	}
	readTimeout = timeout
	idleTimeout = timeout

	switch {
	case tc.AsyncTimeout < 0, timeout == 0:
		writeTimeout = 0
	default:
		writeTimeout = max(timeout, tc.AsyncTimeout) + headerTimeout
	}

	return
}
