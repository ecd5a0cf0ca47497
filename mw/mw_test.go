package mw_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/jsgi"
	"github.com/stretchr/testify/require"
)

func newRequest(method, target string, headers ...string) *jsgi.Request {
	return jsgi.NewRequest(newStdRequest(method, target, headers...), nil, "")
}

func respond(resp *jsgi.Response, err error) jsgi.Handler {
	return jsgi.HandlerFunc(func(context.Context, *jsgi.Request) (*jsgi.Response, error) {
		return resp, err
	})
}

func readBody(t *testing.T, resp *jsgi.Response) string {
	t.Helper()
	b, err := jsgi.ReadAll(resp.Body, "utf-8")
	require.NoError(t, err)
	return string(b)
}

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }

func newStdRequest(method, target string, headers ...string) *http.Request {
	raw := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		raw.Header.Add(headers[i], headers[i+1])
	}
	return raw
}
