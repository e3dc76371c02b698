package job

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Codec serializes and deserializes a job's payload type T. Per spec.md's
// "Generic payload type" design note, this module takes the generic-Queue
// approach: callers supply a Codec[T] once, and the core never reflects
// over arbitrary payloads at runtime.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSONCodec is the default Codec, serializing camelCase JSON as required
// for wire-compatibility with peer (JavaScript) implementations. Encoding
// uses the standard library; decoding uses sonic, mirroring the split the
// teacher's encoder.go makes for decode-path latency on the hot dispatch
// loop.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := sonic.Unmarshal(data, &v)
	return v, err
}
