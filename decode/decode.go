// Package decode measures the natural pixel dimensions of a fetched byte
// blob. The browser-era source instantiated a hidden <img> element purely to
// learn width/height; the Go equivalent is image.DecodeConfig, which reads
// just the header rather than rasterising the whole bitmap. Package
// golang.org/x/image registers decoders (bmp, tiff, webp) beyond the stdlib
// png/jpeg/gif trio so more real-world URLs resolve to a size instead of a
// blob-error.
package decode

import (
	"bytes"
	"fmt"
	"image"

	// Side-effect imports: register additional format decoders with the
	// image package so image.DecodeConfig recognizes them.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/krisalay/imagecache/types"
)

// NaturalSize reads an image header and returns its natural pixel
// dimensions, without decoding the full bitmap.
func NaturalSize(b []byte) (types.Size, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return types.Size{}, fmt.Errorf("decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return types.Size{}, fmt.Errorf("decode header: non-positive dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return types.Size{Width: cfg.Width, Height: cfg.Height}, nil
}
