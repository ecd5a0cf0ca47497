package jsgi

import (
	"bytes"
	"strings"
)

// Params holds decoded request parameters. Values are strings, []any for array
// parameters (`a[]=x`), map[string]any for nested parameters (`a[b]=x`) or [*FilePart]
// for uploaded files.
type Params map[string]any

// String returns the parameter as a string, or the empty string when it is absent or not a
// plain value.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Map returns a nested parameter object.
func (p Params) Map(name string) Params {
	switch v := p[name].(type) {
	case map[string]any:
		return Params(v)
	case Params:
		return v
	}
	return nil
}

// List returns an array parameter.
func (p Params) List(name string) []any {
	l, _ := p[name].([]any)
	return l
}

// ParseParameters decodes application/x-www-form-urlencoded content. Pairs are split on '&'
// and each pair on its first '='. A '+' becomes a space before percent decoding and malformed
// percent sequences are kept as they are, so the function never fails.
func ParseParameters(body []byte, encoding string) Params {
	params := Params{}
	for _, pair := range bytes.Split(body, []byte("&")) {
		if len(pair) == 0 {
			continue
		}

		var name, value []byte
		if i := bytes.IndexByte(pair, '='); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		} else {
			name = pair
		}

		key := decodeBytes(unescape(name), encoding)
		if key == "" {
			continue
		}

		MergeParameter(params, key, decodeBytes(unescape(value), encoding))
	}
	return params
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func unescape(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		switch c := b[i]; c {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 < len(b) {
				hi, ok1 := unhex(b[i+1])
				lo, ok2 := unhex(b[i+2])
				if ok1 && ok2 {
					out = append(out, hi<<4|lo)
					i += 2
					continue
				}
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

// splitParamName splits `foo[bar][]` into "foo" and ["bar", ""]. Names whose bracket part is
// malformed are returned whole without segments.
func splitParamName(name string) (string, []string) {
	open := strings.IndexByte(name, '[')
	if open <= 0 {
		return name, nil
	}

	base, rest := name[:open], name[open:]

	var segs []string
	for rest != "" {
		if rest[0] != '[' {
			return name, nil
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return name, nil
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	return base, segs
}

// MergeParameter adds value under name to params, building nested maps for `[key]` segments
// and slices for `[]` segments. A plain name that occurs twice keeps the last value.
func MergeParameter(params Params, name string, value any) {
	base, segs := splitParamName(name)
	params[base] = insertParam(params[base], segs, value)
}

func insertParam(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}

	seg, rest := segs[0], segs[1:]
	if seg == "" {
		list, _ := node.([]any)
		if len(rest) == 0 {
			return append(list, value)
		}

		// `a[][b]=1&a[][c]=2` fills the same element until a key repeats.
		if n := len(list); n > 0 && rest[0] != "" {
			if last, ok := list[n-1].(map[string]any); ok {
				if _, taken := last[rest[0]]; !taken {
					list[n-1] = insertParam(last, rest, value)
					return list
				}
			}
		}
		return append(list, insertParam(nil, rest, value))
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[seg] = insertParam(m[seg], rest, value)
	return m
}
