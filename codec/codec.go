// Package codec defines the pluggable wire transformer contract the
// middleware adapter uses to serialize data-element samples and operation
// payloads, and ships two reference implementations. It is grounded on
// §4.5's payload contract ("a pluggable transformer provides to_wire/
// from_wire per type; round-trip equality is required") and, for encoding
// choice, stdlib-adjacent, dependency-free codecs at the leaf layer, since
// no dedicated serialization library is needed for this exact shape.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Transformer converts a value of T to and from its wire representation.
// Implementations must satisfy round-trip equality: FromWire(ToWire(v))
// must reproduce v for every v representable in T.
type Transformer[T any] interface {
	ToWire(v T) ([]byte, error)
	FromWire(data []byte) (T, error)
}

// JSONTransformer encodes values as JSON. It is the default transformer
// for the middleware adapter's example wiring: human-readable on the wire,
// which matters for a CloudEvents envelope meant to be inspectable.
type JSONTransformer[T any] struct{}

func (JSONTransformer[T]) ToWire(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONTransformer[T]) FromWire(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("codec: json decode: %w", err)
	}
	return v, nil
}

// GobTransformer encodes values with encoding/gob. It is more compact than
// JSON and a closer byte-for-byte analogue of a fixed binary wire struct,
// at the cost of not being human-inspectable.
type GobTransformer[T any] struct{}

func (GobTransformer[T]) ToWire(v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("codec: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobTransformer[T]) FromWire(data []byte) (T, error) {
	var v T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, fmt.Errorf("codec: gob decode: %w", err)
	}
	return v, nil
}
