package jsgi_test

import (
	"net/url"
	"testing"

	"github.com/advdv/jsgi"
	"github.com/stretchr/testify/require"
)

func TestParseParameters(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
		exp  jsgi.Params
	}{
		{"empty", "", jsgi.Params{}},
		{"simple", "a=1&b=2", jsgi.Params{"a": "1", "b": "2"}},
		{"first equals splits", "a=1=2", jsgi.Params{"a": "1=2"}},
		{"no value", "flag&x=", jsgi.Params{"flag": "", "x": ""}},
		{"plus before percent", "q=a+b%2Bc", jsgi.Params{"q": "a b+c"}},
		{"malformed percent kept", "q=100%&r=%zz%4", jsgi.Params{"q": "100%", "r": "%zz%4"}},
		{"last value wins", "a=1&a=2", jsgi.Params{"a": "2"}},
		{"empty key skipped", "=x&&a=1", jsgi.Params{"a": "1"}},
		{"nested", "foo[bar][]=x", jsgi.Params{"foo": map[string]any{"bar": []any{"x"}}}},
		{"array", "a[]=1&a[]=2", jsgi.Params{"a": []any{"1", "2"}}},
		{"map", "u[name]=bob&u[age]=3", jsgi.Params{"u": map[string]any{"name": "bob", "age": "3"}}},
		{
			"array of objects", "a[][b]=1&a[][c]=2&a[][b]=3",
			jsgi.Params{"a": []any{map[string]any{"b": "1", "c": "2"}, map[string]any{"b": "3"}}},
		},
		{"malformed brackets", "a[b=1", jsgi.Params{"a[b": "1"}},
		{"encoded brackets", "a%5Bb%5D=1", jsgi.Params{"a": map[string]any{"b": "1"}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.exp, jsgi.ParseParameters([]byte(tt.body), "utf-8"))
		})
	}
}

func TestParseParametersRoundTrip(t *testing.T) {
	vals := url.Values{}
	vals.Set("name", "Jürgen & Co = 100%")
	vals.Set("empty", "")
	vals.Set("symbols", "+/?#[]")

	params := jsgi.ParseParameters([]byte(vals.Encode()), "utf-8")
	for k := range vals {
		require.Equal(t, vals.Get(k), params.String(k), k)
	}
}

func TestParseParametersCharset(t *testing.T) {
	// "caf\xe9" is café in latin-1
	params := jsgi.ParseParameters([]byte("x=caf%E9"), "iso-8859-1")
	require.Equal(t, "café", params.String("x"))

	params = jsgi.ParseParameters([]byte("x=caf%E9"), "no-such-charset")
	require.Equal(t, "caf\xe9", params.String("x"))
}

func TestParamsAccessors(t *testing.T) {
	params := jsgi.ParseParameters([]byte("u[name]=bob&l[]=1&s=x"), "")
	require.Equal(t, "bob", params.Map("u").String("name"))
	require.Equal(t, []any{"1"}, params.List("l"))
	require.Equal(t, "", params.String("u"))
	require.Nil(t, params.Map("s"))
	require.Nil(t, params.List("missing"))
}

func TestMergeParameter(t *testing.T) {
	params := jsgi.Params{}
	jsgi.MergeParameter(params, "a[b][c]", "1")
	jsgi.MergeParameter(params, "a[b][d]", "2")
	jsgi.MergeParameter(params, "a[e][]", 3)

	require.Equal(t, jsgi.Params{"a": map[string]any{
		"b": map[string]any{"c": "1", "d": "2"},
		"e": []any{3},
	}}, params)
}
