package encoding

import (
	"bytes"
	"encoding/json"
)

// Serializable provides a clean, simple interface for serializing and
// deserializing values.
type Serializable[T any] interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// JSONCodec marshals values as indented JSON into pooled buffers supplied by
// the caller.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(buf *bytes.Buffer, v T) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (JSONCodec[T]) Decode(data []byte, v *T) error {
	return json.Unmarshal(data, v)
}
