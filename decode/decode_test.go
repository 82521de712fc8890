package decode

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNaturalSize(t *testing.T) {
	size, err := NaturalSize(encodePNG(t, 64, 32))
	if err != nil {
		t.Fatalf("NaturalSize() error: %v", err)
	}
	if size.Width != 64 || size.Height != 32 {
		t.Fatalf("size = %v, want 64x32", size)
	}
}

func TestNaturalSizeRejectsGarbage(t *testing.T) {
	if _, err := NaturalSize([]byte("not an image")); err == nil {
		t.Fatalf("expected an error for non-image bytes")
	}
}

func TestPoolMeasure(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	size, err := p.Measure(context.Background(), encodePNG(t, 8, 8))
	if err != nil {
		t.Fatalf("Measure() error: %v", err)
	}
	if size.Width != 8 || size.Height != 8 {
		t.Fatalf("size = %v, want 8x8", size)
	}
}

func TestPoolMeasureSurfacesDecodeError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	if _, err := p.Measure(context.Background(), []byte("not an image")); err == nil {
		t.Fatalf("expected Measure to surface the underlying decode error")
	}
}
