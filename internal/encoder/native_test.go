package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/musefactory/mediacache/internal/transform"
)

// testJPEG renders a small gradient and encodes it as JPEG.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestNativeEncodeDownscale(t *testing.T) {
	e := NewNativeEncoder()
	src := testJPEG(t, 400, 300)

	out, desc, err := e.Encode(src, transform.Options{Width: 200, Quality: 80, Format: transform.FormatJPEG})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if desc.Width != 200 || desc.Height != 150 {
		t.Errorf("descriptor = %dx%d, want 200x150", desc.Width, desc.Height)
	}
	if desc.Size != len(out) {
		t.Errorf("Size = %d, payload = %d", desc.Size, len(out))
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 200 {
		t.Errorf("decoded width = %d", decoded.Bounds().Dx())
	}
}

// Requesting a width above the source keeps the source dimensions.
func TestNativeEncodeNeverUpscales(t *testing.T) {
	e := NewNativeEncoder()
	src := testJPEG(t, 400, 300)

	_, desc, err := e.Encode(src, transform.Options{Width: 800, Quality: 80, Format: transform.FormatJPEG})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if desc.Width != 400 || desc.Height != 300 {
		t.Errorf("descriptor = %dx%d, want source 400x300", desc.Width, desc.Height)
	}
}

func TestNativeEncodeZeroWidthKeepsSource(t *testing.T) {
	e := NewNativeEncoder()
	src := testJPEG(t, 400, 300)

	_, desc, err := e.Encode(src, transform.Options{Quality: 80, Format: transform.FormatJPEG})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if desc.Width != 400 {
		t.Errorf("descriptor width = %d, want 400", desc.Width)
	}
}

func TestNativeEncodePNG(t *testing.T) {
	e := NewNativeEncoder()
	src := testJPEG(t, 64, 64)

	out, desc, err := e.Encode(src, transform.Options{Quality: 80, Format: transform.FormatPNG})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if desc.Format != transform.FormatPNG {
		t.Errorf("Format = %s", desc.Format)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not valid PNG: %v", err)
	}
}

func TestNativeEncodeUnsupportedTarget(t *testing.T) {
	e := NewNativeEncoder()
	src := testJPEG(t, 64, 64)

	for _, f := range []transform.Format{transform.FormatWebP, transform.FormatAVIF} {
		if _, _, err := e.Encode(src, transform.Options{Quality: 80, Format: f}); err == nil {
			t.Errorf("expected error for %s target", f)
		}
	}
}

func TestNativeEncodeBadInput(t *testing.T) {
	e := NewNativeEncoder()
	if _, _, err := e.Encode([]byte("not an image"), transform.Options{Quality: 80, Format: transform.FormatJPEG}); err == nil {
		t.Error("expected decode error")
	}
}
