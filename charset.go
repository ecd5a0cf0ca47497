package jsgi

import (
	"mime"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html/charset"
)

// DefaultCharset is used when neither the response nor the server configuration names one.
const DefaultCharset = "utf-8"

// ErrUnknownCharset is returned when a charset label cannot be resolved.
var ErrUnknownCharset = errors.New("jsgi: unknown charset")

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// CharsetOf returns the charset parameter of a Content-Type value or fallback if absent.
func CharsetOf(contentType, fallback string) string {
	if contentType == "" {
		return fallback
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fallback
	}
	if cs, ok := params["charset"]; ok && cs != "" {
		return cs
	}
	return fallback
}

// EncodeString converts s into the bytes of the named charset.
func EncodeString(s, label string) ([]byte, error) {
	if isUTF8(label) {
		return []byte(s), nil
	}

	enc, _ := charset.Lookup(label)
	if enc == nil {
		return nil, errors.Wrapf(ErrUnknownCharset, "encode %q", label)
	}

	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "encode to %s", label)
	}
	return b, nil
}

// decodeBytes turns raw bytes of the named charset into a string. Unknown charsets and
// undecodable input fall back to the raw bytes so parameter parsing never fails.
func decodeBytes(b []byte, label string) string {
	if isUTF8(label) {
		return string(b)
	}

	enc, _ := charset.Lookup(label)
	if enc == nil {
		return string(b)
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
