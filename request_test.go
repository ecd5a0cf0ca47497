package jsgi_test

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	raw := httptest.NewRequest(http.MethodGet, "https://example.com/a%20b/c?x=1&y[]=2", nil)
	raw.TLS = &tls.ConnectionState{}
	raw.Header.Set("X-Custom", "v")

	req := jsgi.NewRequest(raw, nil, "")
	require.Equal(t, "https", req.Scheme)
	require.Equal(t, "example.com", req.Host)
	require.Equal(t, "/a%20b/c", req.Path())
	require.Equal(t, "", req.ScriptName)
	require.Equal(t, "v", req.Header("x-custom"))
	require.Equal(t, "utf-8", req.Charset())
	require.Same(t, raw, req.Std())

	require.Equal(t, "1", req.Query().String("x"))
	require.Equal(t, []any{"2"}, req.Query().List("y"))
}

// inputExchange replaces the input of a standard exchange.
type inputExchange struct {
	jsgi.Exchange
	in io.Reader
}

func (e inputExchange) Input() io.Reader { return e.in }

func TestNewRequestReadsExchangeInput(t *testing.T) {
	raw := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=raw"))
	raw.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ex := inputExchange{jsgi.NewStdExchange(httptest.NewRecorder(), raw), strings.NewReader("a=exchange")}

	post, err := jsgi.NewRequest(raw, ex, "").PostParams()
	require.NoError(t, err)
	require.Equal(t, "exchange", post.String("a"))
}

func TestRequestPostParams(t *testing.T) {
	raw := httptest.NewRequest(http.MethodPost, "/?a=q", strings.NewReader("a=p&b=%E9"))
	raw.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=iso-8859-1")

	req := jsgi.NewRequest(raw, nil, "")
	require.Equal(t, "iso-8859-1", req.Charset())

	post, err := req.PostParams()
	require.NoError(t, err)
	require.Equal(t, jsgi.Params{"a": "p", "b": "é"}, post)

	again, err := req.PostParams()
	require.NoError(t, err)
	require.Equal(t, post, again, "cached")

	all, err := req.Params()
	require.NoError(t, err)
	require.Equal(t, "p", all.String("a"))
}

func TestRequestPostParamsOtherContentType(t *testing.T) {
	raw := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	raw.Header.Set("Content-Type", "application/json")

	post, err := jsgi.NewRequest(raw, nil, "").PostParams()
	require.NoError(t, err)
	require.Empty(t, post)
}

func TestRequestPostParamsMalformedMultipart(t *testing.T) {
	raw := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("nothing"))
	raw.Header.Set("Content-Type", "multipart/form-data")

	_, err := jsgi.NewRequest(raw, nil, "").PostParams()
	require.Equal(t, jsgi.CodeBadRequest, jsgi.CodeOf(err))
	require.True(t, errors.Is(err, jsgi.ErrNoBoundary))
}
