// Package transform defines normalized transform options and the policy
// that maps raw request parameters onto them.
package transform

import (
	"strconv"
	"strings"

	mcerr "github.com/musefactory/mediacache/internal/errors"
)

// Format is a normalized output format.
type Format string

const (
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Video reports whether the format takes the video transcode path.
func (f Format) Video() bool {
	return f == FormatMP4 || f == FormatWebM
}

// Ext returns the file extension used in storage keys.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type for encoded output.
func (f Format) ContentType() string {
	if f.Video() {
		return "video/" + string(f)
	}
	return "image/" + string(f)
}

// Options is a fully normalized transform request. Defaults are
// substituted before key derivation, so an omitted parameter and an
// explicit default collapse to the same cache key.
type Options struct {
	// Width is the target output width in pixels; 0 means keep the
	// source width. Resizing is downscale-only: output never exceeds the
	// source's native width.
	Width    int
	Quality  int
	Lossless bool
	Format   Format
}

// Normalizer applies defaults, ceilings, and the quality tier policy to
// raw request parameters.
type Normalizer struct {
	maxWidth       int
	defaultQuality int
	tiers          map[string]int
}

// NewNormalizer builds a Normalizer. tiers maps named quality values
// ("auto:good") to numeric ones and is configuration, not a constant.
func NewNormalizer(maxWidth, defaultQuality int, tiers map[string]int) *Normalizer {
	return &Normalizer{
		maxWidth:       maxWidth,
		defaultQuality: defaultQuality,
		tiers:          tiers,
	}
}

// Normalize converts raw query/form values into Options. Invalid values
// are a validation error; out-of-range numeric values are clamped rather
// than rejected.
func (n *Normalizer) Normalize(width, quality, format string) (Options, error) {
	opts := Options{Quality: n.defaultQuality}

	if width != "" {
		w, err := strconv.Atoi(width)
		if err != nil || w <= 0 {
			return Options{}, mcerr.Validation("invalid width %q", width)
		}
		if w > n.maxWidth {
			w = n.maxWidth
		}
		opts.Width = w
	}

	if quality != "" {
		switch {
		case quality == "lossless":
			opts.Lossless = true
			opts.Quality = 100
		default:
			if q, err := strconv.Atoi(quality); err == nil {
				opts.Quality = clampQuality(q)
			} else if q, ok := n.tiers[quality]; ok {
				opts.Quality = clampQuality(q)
			} else {
				return Options{}, mcerr.Validation("invalid quality %q", quality)
			}
		}
	}

	f, err := normalizeFormat(format)
	if err != nil {
		return Options{}, err
	}
	opts.Format = f

	return opts, nil
}

func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}

func normalizeFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "", "auto", "webp":
		return FormatWebP, nil
	case "avif":
		return FormatAVIF, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "mp4":
		return FormatMP4, nil
	case "webm":
		return FormatWebM, nil
	}
	return "", mcerr.Validation("invalid format %q", format)
}
