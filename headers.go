package jsgi

import (
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
)

type headerEntry struct {
	name   string
	values []string
}

// HeaderMap is an ordered, case-insensitive mapping of header names to one or more values. It
// uses linear search, which is faster than hashing for the small number of headers a response
// typically carries. The zero value is an empty map ready to use.
//
// Copies of a HeaderMap may share storage. Mutations never write into shared storage, so a
// map can be reused as a template for many responses.
type HeaderMap struct {
	entries []headerEntry
}

// NewHeaderMap builds a header map from name/value pairs. An odd trailing name is ignored.
func NewHeaderMap(pairs ...string) HeaderMap {
	var h HeaderMap
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

// HeaderMapFromStd copies a standard library header. Since http.Header is unordered the keys
// are inserted in sorted order to keep the result deterministic.
func HeaderMapFromStd(std http.Header) HeaderMap {
	keys := lo.Keys(std)
	sort.Strings(keys)

	h := HeaderMap{entries: make([]headerEntry, 0, len(keys))}
	for _, k := range keys {
		h.entries = append(h.entries, headerEntry{name: k, values: append([]string(nil), std[k]...)})
	}
	return h
}

func (h *HeaderMap) index(name string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.name, name) {
			return i
		}
	}
	return -1
}

// Get returns the first value for name, or the empty string.
func (h *HeaderMap) Get(name string) string {
	if i := h.index(name); i >= 0 && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values returns all values for name. The returned slice must not be modified.
func (h *HeaderMap) Values(name string) []string {
	if i := h.index(name); i >= 0 {
		return h.entries[i].values
	}
	return nil
}

// Has reports whether name is present.
func (h *HeaderMap) Has(name string) bool {
	return h.index(name) >= 0
}

// Set replaces the values for name. If a case-insensitively equal key exists its original
// casing and position are kept, otherwise the header is appended under the given casing.
func (h *HeaderMap) Set(name string, values ...string) {
	values = append([]string(nil), values...)
	if i := h.index(name); i >= 0 {
		h.entries = slices.Clone(h.entries)
		h.entries[i].values = values
		return
	}
	h.entries = append(slices.Clip(h.entries), headerEntry{name: name, values: values})
}

// Add appends a value for name.
func (h *HeaderMap) Add(name, value string) {
	if i := h.index(name); i >= 0 {
		h.entries = slices.Clone(h.entries)
		h.entries[i].values = append(slices.Clip(h.entries[i].values), value)
		return
	}
	h.entries = append(slices.Clip(h.entries), headerEntry{name: name, values: []string{value}})
}

// Unset removes name.
func (h *HeaderMap) Unset(name string) {
	if i := h.index(name); i >= 0 {
		h.entries = slices.Delete(slices.Clone(h.entries), i, i+1)
	}
}

// Keys returns the header names in insertion order with their stored casing.
func (h *HeaderMap) Keys() []string {
	return lo.Map(h.entries, func(e headerEntry, _ int) string { return e.name })
}

// Len returns the number of distinct header names.
func (h *HeaderMap) Len() int { return len(h.entries) }

// Each calls fn for each header in insertion order.
func (h *HeaderMap) Each(fn func(name string, values []string)) {
	for _, e := range h.entries {
		fn(e.name, e.values)
	}
}

// Clone returns a deep copy.
func (h HeaderMap) Clone() HeaderMap {
	c := HeaderMap{entries: make([]headerEntry, len(h.entries))}
	for i, e := range h.entries {
		c.entries[i] = headerEntry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return c
}

// Std converts the map into a standard library header.
func (h *HeaderMap) Std() http.Header {
	std := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		key := http.CanonicalHeaderKey(e.name)
		std[key] = append(std[key], e.values...)
	}
	return std
}
