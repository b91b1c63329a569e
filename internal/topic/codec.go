package topic

import "encoding/json"

// Codec converts between a typed payload and the opaque bytes a Backend
// stores. StreamTopic[T] uses JSONCodec unless WithCodec swaps in
// another one, such as ByteCodec when T is []byte.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSONCodec is the default Codec for stream topics.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

// ByteCodec is an identity Codec for T = []byte, avoiding a pointless
// marshal round trip for topics that already carry raw bytes.
type ByteCodec struct{}

func (ByteCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (ByteCodec) Decode(b []byte) ([]byte, error) { return b, nil }
