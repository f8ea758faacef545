package codec

import "bytes"

// Bytes is the identity codec for already encoded artifacts (PNG, SVG, PDF bytes).
// Decode returns a copy so callers cannot mutate what the provider holds.
type Bytes struct{}

var _ Codec[[]byte] = Bytes{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return bytes.Clone(b), nil }

// String is a codec for textual artifacts such as SVG markup. No UTF-8 validation.
type String struct{}

var _ Codec[string] = String{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
