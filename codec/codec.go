// Package codec centralizes decoding of the JSON inputs Sentinel reads:
// manifests, golden snapshots and current-state embeddings.
//
// All inputs are produced outside Sentinel, so codecs only have to agree on
// plain JSON; the choice between them is a performance knob, not a format.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Used by configuration, where the codec is selected with a string.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "go-json":
		return GoJSON{}, true
	case "json":
		return JSON{}, true
	default:
		return nil, false
	}
}

// Decode reads r to EOF and unmarshals the content into v.
// If c is nil, Default is used.
func Decode(c Codec, r io.Reader, v any) error {
	if c == nil {
		c = Default
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("codec %s: read: %w", c.Name(), err)
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec %s: decode: %w", c.Name(), err)
	}
	return nil
}
