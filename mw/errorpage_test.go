package mw_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/mw"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorPagePassesControlFlow(t *testing.T) {
	for _, sig := range []error{
		jsgi.Retry("debug"),
		jsgi.RedirectTo(http.StatusFound, "/x"),
		jsgi.NotFound("/y"),
	} {
		h := jsgi.Compose(respond(nil, sig), mw.ErrorPage(mw.ErrorPageConfig{Detailed: true}))
		resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
		require.Nil(t, resp)
		require.Same(t, sig, err)
	}
}

func TestErrorPageRendersErrors(t *testing.T) {
	logs := jsgi.NewTestLogger(t)

	h := jsgi.Compose(respond(nil, errors.New("db <down>")), mw.ErrorPage(mw.ErrorPageConfig{Detailed: true, Logger: logs}))
	resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.Status)
	require.Equal(t, "text/html", resp.Headers.Get("Content-Type"))

	page := readBody(t, resp)
	require.Contains(t, page, "<h1>500 Internal Server Error</h1>")
	require.Contains(t, page, "db &lt;down&gt;")
	require.Contains(t, page, "errorpage_test.go", "stack trace is rendered")
	require.EqualValues(t, 1, logs.NumLogUnhandledError)
}

func TestErrorPageCodedAndUndetailed(t *testing.T) {
	logs := jsgi.NewTestLogger(t)

	h := jsgi.Compose(respond(nil, jsgi.NewError(jsgi.CodeForbidden, errors.New("secret detail"))),
		mw.ErrorPage(mw.ErrorPageConfig{Logger: logs}))
	resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.Status)

	page := readBody(t, resp)
	require.Contains(t, page, "403 Forbidden")
	require.NotContains(t, page, "secret detail")
	require.Zero(t, logs.NumLogUnhandledError)
}

func TestNotFound(t *testing.T) {
	page := jsgi.HandlerFunc(func(_ context.Context, req *jsgi.Request) (*jsgi.Response, error) {
		return jsgi.HTML("<p>nothing at " + req.Path() + "</p>"), nil
	})

	h := jsgi.Compose(respond(nil, jsgi.NotFound("/gone")), mw.NotFound(page))
	resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/gone"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Equal(t, "<p>nothing at /gone</p>", readBody(t, resp))

	h = jsgi.Compose(respond(nil, jsgi.RedirectTo(http.StatusMovedPermanently, "/new")), mw.NotFound(nil))
	resp, err = h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/old"))
	require.NoError(t, err)
	require.Equal(t, http.StatusMovedPermanently, resp.Status)
	require.Equal(t, "/new", resp.Headers.Get("Location"))

	retry := jsgi.Retry("x")
	h = jsgi.Compose(respond(nil, retry), mw.NotFound(nil))
	_, err = h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.Same(t, retry, err)
}

func TestRecover(t *testing.T) {
	h := jsgi.Compose(jsgi.HandlerFunc(func(context.Context, *jsgi.Request) (*jsgi.Response, error) {
		panic("kaboom")
	}), mw.ErrorPage(mw.ErrorPageConfig{Detailed: true}), mw.Recover())

	resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.Status)
	require.Contains(t, readBody(t, resp), "panic: kaboom")

	abort := jsgi.Compose(jsgi.HandlerFunc(func(context.Context, *jsgi.Request) (*jsgi.Response, error) {
		panic(http.ErrAbortHandler)
	}), mw.Recover())
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		_, _ = abort.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	})
}
