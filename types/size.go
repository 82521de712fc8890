package types

import "fmt"

// Size is a pixel dimension pair. It is the unit a RenderRequest asks for
// and an Image reports once it has decoded its natural dimensions.
type Size struct {
	Width  int
	Height int
}

// BytesVideo is the estimated decoded (video-memory) cost of painting this
// size as RGBA: width * height * 4 bytes per pixel.
func (s Size) BytesVideo() int64 {
	return int64(s.Width) * int64(s.Height) * 4
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Zero reports whether the size carries no usable dimensions yet.
func (s Size) Zero() bool {
	return s.Width <= 0 || s.Height <= 0
}
