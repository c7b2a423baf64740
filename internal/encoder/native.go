package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	mcerr "github.com/musefactory/mediacache/internal/errors"
	"github.com/musefactory/mediacache/internal/transform"

	// Source format decoders.
	_ "image/gif"
	_ "golang.org/x/image/webp"
)

// NativeEncoder is the pure-Go image encoder. It decodes jpeg, png, gif,
// and webp sources but can only target jpeg and png; deployments that
// serve webp or avif need the vips engine. Useful where cgo or libvips
// is unavailable.
type NativeEncoder struct{}

// NewNativeEncoder returns a NativeEncoder.
func NewNativeEncoder() *NativeEncoder {
	return &NativeEncoder{}
}

// Encode decodes src, applies a downscale-only Lanczos resize, and
// re-encodes in the requested format.
func (e *NativeEncoder) Encode(src []byte, opts transform.Options) ([]byte, Descriptor, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, Descriptor{}, mcerr.Encoding("decoding source image", err)
	}

	bounds := img.Bounds()
	if opts.Width > 0 && opts.Width < bounds.Dx() {
		img = imaging.Resize(img, opts.Width, 0, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	switch opts.Format {
	case transform.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality})
	case transform.FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, Descriptor{}, mcerr.Encoding(
			"format "+string(opts.Format)+" requires the vips encoder engine", nil)
	}
	if err != nil {
		return nil, Descriptor{}, mcerr.Encoding("encoding image", err)
	}

	return buf.Bytes(), Descriptor{
		Format: opts.Format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   buf.Len(),
	}, nil
}

var _ Encoder = (*NativeEncoder)(nil)
