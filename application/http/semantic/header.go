package semantic

import (
	"browser-http/application/http"
	"browser-http/application/util/rule"

	"github.com/pkg/errors"
)

// Headers is an ordered mapping of field name to field value.
// Field names that are valid tokens are stored in canonical form,
// so lookups are case-insensitive. Insertion order is kept for iteration.
type Headers struct {
	keys   []string
	values map[string]string
}

func NewHeaders(pairs ...[2]string) Headers {
	h := Headers{values: make(map[string]string, len(pairs))}
	for _, pair := range pairs {
		h.Add(pair[0], pair[1])
	}
	return h
}

// HeadersFrom creates headers from raw fields.
// Repeated names are combined into one comma separated value.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.3-1
func HeadersFrom(fields []http.Field) Headers {
	h := Headers{values: make(map[string]string, len(fields))}
	for _, field := range fields {
		h.Add(field.Name, field.Value)
	}
	return h
}

// ParseHeaderBlock parses the CRLF separated response header block of a request primitive.
func ParseHeaderBlock(block string) (Headers, error) {
	fields, err := http.ParseFieldBlock(block)
	if err != nil {
		return Headers{}, errors.Wrap(err, "parsing header block")
	}
	return HeadersFrom(fields), nil
}

func (h *Headers) Get(key string) (value string, ok bool) {
	value, ok = h.values[canonical(key)]
	return
}

// Set overwrites the value of key, keeping its original position.
func (h *Headers) Set(key, value string) {
	key = canonical(key)
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Add appends value to key, combining with an existing value.
func (h *Headers) Add(key, value string) {
	if prev, ok := h.Get(key); ok {
		value = prev + ", " + value
	}
	h.Set(key, value)
}

func (h *Headers) Del(key string) {
	key = canonical(key)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)

	for idx, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:idx:idx], h.keys[idx+1:]...)
			break
		}
	}
}

func (h *Headers) Len() int { return len(h.keys) }

// Keys returns field names in insertion order.
func (h *Headers) Keys() []string {
	keys := make([]string, len(h.keys))
	copy(keys, h.keys)
	return keys
}

// Each calls fn for every field in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

func (h *Headers) Fields() []http.Field {
	fields := make([]http.Field, 0, len(h.keys))
	h.Each(func(name, value string) {
		fields = append(fields, http.Field{Name: name, Value: value})
	})
	return fields
}

// Map returns a copy of the fields as a plain map.
func (h *Headers) Map() map[string]string {
	m := make(map[string]string, len(h.keys))
	h.Each(func(name, value string) { m[name] = value })
	return m
}

func (h Headers) Clone() Headers {
	clone := Headers{
		keys:   make([]string, len(h.keys)),
		values: make(map[string]string, len(h.values)),
	}
	copy(clone.keys, h.keys)
	for k, v := range h.values {
		clone.values[k] = v
	}
	return clone
}

// Validate checks that every field can be put on the wire as is.
func (h *Headers) Validate() error {
	for _, k := range h.keys {
		if !rule.IsValidToken(k) {
			return errors.Errorf("field name %q is not a valid token", k)
		}
		if !rule.IsValidFieldValue(h.values[k]) {
			return errors.Errorf("field value of %q has forbidden characters", k)
		}
	}
	return nil
}

func canonical(s string) string {
	if rule.IsValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}
