// Package encoder transforms decoded media buffers: resize, re-encode,
// quality adjustment. Encoders are pure functions from (bytes, options)
// to (bytes, descriptor) with no knowledge of caching or storage.
package encoder

import (
	"github.com/musefactory/mediacache/internal/transform"
)

// Descriptor describes an encoded output payload. Width and Height are
// measured output dimensions for images; for video they are best-effort
// (the requested cap, zero when no width was requested).
type Descriptor struct {
	Format transform.Format
	Width  int
	Height int
	// Size is the encoded payload length in bytes.
	Size int
}

// Encoder re-encodes an image buffer according to the normalized options.
// Implementations must be safe for concurrent use. Encoding is CPU-bound
// and runs to completion once started; there is no cooperative
// cancellation.
//
// Resizing is downscale-only: when options request a width larger than
// the source's native width, the source width is kept. Upscaling would
// manufacture artifacts and waste storage.
type Encoder interface {
	Encode(src []byte, opts transform.Options) ([]byte, Descriptor, error)
}
