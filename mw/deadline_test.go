package mw_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/mw"
	"github.com/stretchr/testify/require"
)

func TestRequestDeadline(t *testing.T) {
	h := jsgi.Compose(jsgi.HandlerFunc(func(ctx context.Context, _ *jsgi.Request) (*jsgi.Response, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return jsgi.Text("too late"), nil
		}
	}), mw.RequestDeadline(10*time.Millisecond))

	_, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.Equal(t, jsgi.CodeServiceUnavailable, jsgi.CodeOf(err))
}

func TestRequestDeadlineEndsWithBody(t *testing.T) {
	var reqCtx context.Context
	h := jsgi.Compose(jsgi.HandlerFunc(func(ctx context.Context, _ *jsgi.Request) (*jsgi.Response, error) {
		reqCtx = ctx
		return jsgi.Text("ok"), nil
	}), mw.RequestDeadline(time.Minute))

	resp, err := h.ServeJSGI(context.Background(), newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	require.NoError(t, reqCtx.Err(), "still usable while the body is produced")

	fb, ok := resp.Body.(jsgi.FiniteBody)
	require.True(t, ok)
	require.True(t, fb.Finite())

	require.Equal(t, "ok", readBody(t, resp))
	require.NoError(t, resp.Body.Close())
	require.ErrorIs(t, reqCtx.Err(), context.Canceled)
}
