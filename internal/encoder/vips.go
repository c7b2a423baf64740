package encoder

import (
	"fmt"
	"log/slog"

	"github.com/davidbyttow/govips/v2/vips"

	mcerr "github.com/musefactory/mediacache/internal/errors"
	"github.com/musefactory/mediacache/internal/transform"
)

// StartVips initializes libvips for the process. Must be called once
// before the first Encode; govips does not support stopping and
// restarting vips in the same process.
func StartVips() {
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level >= vips.LogLevelError:
			slog.Error("vips", "domain", domain, "msg", msg)
		case level == vips.LogLevelWarning:
			slog.Warn("vips", "domain", domain, "msg", msg)
		}
	}, vips.LogLevelWarning)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 0, // vips default: one thread pool per CPU
	})
	slog.Info("libvips initialized", "version", vips.Version)
}

// StopVips releases libvips resources on shutdown.
func StopVips() {
	vips.Shutdown()
}

// VipsEncoder is the libvips-backed image encoder. It supports every
// image target format including webp and avif.
type VipsEncoder struct{}

// NewVipsEncoder returns a VipsEncoder. StartVips must have run.
func NewVipsEncoder() *VipsEncoder {
	return &VipsEncoder{}
}

// Encode decodes src, applies a downscale-only resize, and exports in
// the requested format.
func (e *VipsEncoder) Encode(src []byte, opts transform.Options) ([]byte, Descriptor, error) {
	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, Descriptor{}, mcerr.Encoding("decoding source image", err)
	}
	defer img.Close()

	if opts.Width > 0 && opts.Width < img.Width() {
		scale := float64(opts.Width) / float64(img.Width())
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, Descriptor{}, mcerr.Encoding("resizing image", err)
		}
	}

	data, meta, err := export(img, opts)
	if err != nil {
		return nil, Descriptor{}, mcerr.Encoding(fmt.Sprintf("encoding to %s", opts.Format), err)
	}

	return data, Descriptor{
		Format: opts.Format,
		Width:  meta.Width,
		Height: meta.Height,
		Size:   len(data),
	}, nil
}

func export(img *vips.ImageRef, opts transform.Options) ([]byte, *vips.ImageMetadata, error) {
	switch opts.Format {
	case transform.FormatWebP:
		p := vips.NewWebpExportParams()
		p.Quality = opts.Quality
		p.Lossless = opts.Lossless
		p.ReductionEffort = 4
		return img.ExportWebp(p)
	case transform.FormatAVIF:
		p := vips.NewAvifExportParams()
		p.Quality = opts.Quality
		p.Lossless = opts.Lossless
		return img.ExportAvif(p)
	case transform.FormatJPEG:
		p := vips.NewJpegExportParams()
		p.Quality = opts.Quality
		return img.ExportJpeg(p)
	case transform.FormatPNG:
		p := vips.NewPngExportParams()
		p.Compression = 9
		p.Palette = !opts.Lossless
		return img.ExportPng(p)
	}
	return nil, nil, fmt.Errorf("unsupported image format %q", opts.Format)
}

var _ Encoder = (*VipsEncoder)(nil)
