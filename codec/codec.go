// Package codec converts render artifacts to and from the bytes kept by a
// provider.
package codec

// Codec encodes/decodes artifacts of type V.
// Decode may alias b; implementations that keep b must copy it.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Func builds a Codec from a pair of functions.
type Func[V any] struct {
	EncodeFunc func(V) ([]byte, error)
	DecodeFunc func([]byte) (V, error)
}

func (f Func[V]) Encode(v V) ([]byte, error) { return f.EncodeFunc(v) }
func (f Func[V]) Decode(b []byte) (V, error) { return f.DecodeFunc(b) }
