package codec

import (
	"bytes"
	"image"
	"image/png"
)

// PNG stores image.Image artifacts as PNG. Decode returns the concrete image
// type chosen by image/png (e.g. *image.NRGBA).
type PNG struct {
	Level png.CompressionLevel
}

var _ Codec[image.Image] = PNG{}

func (c PNG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: c.Level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (PNG) Decode(b []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(b))
}
