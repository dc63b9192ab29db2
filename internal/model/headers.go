package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"strings"
)

// Headers is an ordered header mapping with case-insensitive names.
// Names are stored lowercase, each at most once. The zero value is empty and
// ready to use.
type Headers struct {
	fields []headerField
	index  map[string]int
}

type headerField struct {
	name  string
	value string
}

// NewHeaders builds Headers from alternating name, value pairs.
func NewHeaders(kv ...string) *Headers {
	h := &Headers{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// HeadersFromHTTP converts an http.Header, joining repeated values with ", ".
// Set-Cookie values cannot be joined, so only the last one is kept.
// Names keep the order of sorted canonical keys since http.Header is unordered.
func HeadersFromHTTP(src http.Header) *Headers {
	h := &Headers{}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		vals := src[k]
		switch {
		case len(vals) == 0:
		case canonical(k) == "set-cookie":
			h.Set(k, vals[len(vals)-1])
		default:
			h.Set(k, strings.Join(vals, ", "))
		}
	}
	return h
}

func canonical(name string) string {
	return strings.ToLower(name)
}

// Set stores value under name, replacing any previous value in place.
func (h *Headers) Set(name, value string) {
	key := canonical(name)
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.fields[i].value = value
		return
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, headerField{name: key, value: value})
}

// Get returns the value for name, or "" when absent.
func (h *Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value for name and whether it is present.
func (h *Headers) Lookup(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	i, ok := h.index[canonical(name)]
	if !ok {
		return "", false
	}
	return h.fields[i].value, true
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Del removes each of names if present. Remaining entries keep their order.
func (h *Headers) Del(names ...string) {
	if h == nil || len(h.fields) == 0 {
		return
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[canonical(n)] = true
	}
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !drop[f.name] {
			kept = append(kept, f)
		}
	}
	h.fields = kept
	h.reindex()
}

func (h *Headers) reindex() {
	h.index = make(map[string]int, len(h.fields))
	for i, f := range h.fields {
		h.index[f.name] = i
	}
}

// Len returns the number of entries.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// All iterates entries in insertion order.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if h == nil {
			return
		}
		for _, f := range h.fields {
			if !yield(f.name, f.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	c := &Headers{}
	if h == nil {
		return c
	}
	c.fields = append([]headerField(nil), h.fields...)
	c.reindex()
	return c
}

// HTTP converts to an http.Header with canonicalized keys.
func (h *Headers) HTTP() http.Header {
	dst := make(http.Header, h.Len())
	for k, v := range h.All() {
		dst.Set(k, v)
	}
	return dst
}

// MarshalJSON encodes the headers as a JSON object in insertion order.
func (h *Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, v := range h.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping document
// order. A later duplicate (in any casing) overwrites the earlier value.
func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*h = Headers{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("headers: expected JSON object, got %v", tok)
	}
	out := Headers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("headers: expected string key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("headers: value for %q: %w", name, err)
		}
		out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}
