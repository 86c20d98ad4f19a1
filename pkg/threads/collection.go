package threads

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Collection is a map that remembers insertion order. Collected records
// are keyed "post 1", "follower 2" and so on, and discovery order must
// survive serialization, which a plain map cannot guarantee.
type Collection[T any] struct {
	keys   []string
	values map[string]T
}

// NewCollection returns an empty collection.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{values: make(map[string]T)}
}

// Put inserts or replaces the value for key. New keys are appended to
// the iteration order; replaced keys keep their original position.
func (c *Collection[T]) Put(key string, v T) {
	if c.values == nil {
		c.values = make(map[string]T)
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
}

// Get returns the value for key.
func (c *Collection[T]) Get(key string) (T, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of entries.
func (c *Collection[T]) Len() int {
	return len(c.keys)
}

// Keys returns the keys in insertion order.
func (c *Collection[T]) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (c *Collection[T]) Each(fn func(key string, v T)) {
	for _, k := range c.keys {
		fn(k, c.values[k])
	}
}

// MarshalJSON encodes the collection as a JSON object with keys in
// insertion order.
func (c *Collection[T]) MarshalJSON() ([]byte, error) {
	if c == nil || len(c.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving its key order.
func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	c.keys = nil
	c.values = make(map[string]T)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return err
		}
		c.Put(key, v)
	}
	_, err = dec.Token() // closing brace
	return err
}
