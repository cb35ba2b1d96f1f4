// Package images holds the in-memory image type shared by the loader, the
// device and the writer, together with PNG and raw float codecs and the
// cubemap dataset layout.
//
// Pixel data is row-major with interleaved channels. 16-bit samples are
// little-endian and 32-bit samples are little-endian IEEE-754 floats, which
// is also how the device lays out staging buffers, so a readback payload can
// be wrapped without conversion.
package images

import (
	"fmt"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// Depth is the size of one channel sample.
type Depth int

const (
	// Bits8 is an unsigned 8-bit sample
	Bits8 Depth = 1
	// Bits16 is an unsigned little-endian 16-bit sample
	Bits16 Depth = 2
	// Bits32 is a little-endian float32 sample
	Bits32 Depth = 4
)

// Bytes returns the number of bytes per sample.
func (d Depth) Bytes() int {
	return int(d)
}

// String renders the depth in bits.
func (d Depth) String() string {
	switch d {
	case Bits8:
		return "8-bit"
	case Bits16:
		return "16-bit"
	case Bits32:
		return "32-bit float"
	default:
		return fmt.Sprintf("Depth(%d)", int(d))
	}
}

// Image is a dense image buffer.
type Image struct {
	Width    int
	Height   int
	Channels int
	Depth    Depth
	Data     []byte
}

// New allocates a zeroed image.
func New(width, height, channels int, depth Depth) *Image {
	img := &Image{Width: width, Height: height, Channels: channels, Depth: depth}
	img.Data = make([]byte, img.Size())
	return img
}

// Wrap builds an image over an existing buffer without copying. The buffer
// must be exactly Size bytes long.
func Wrap(width, height, channels int, depth Depth, data []byte) (*Image, error) {
	img := &Image{Width: width, Height: height, Channels: channels, Depth: depth, Data: data}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Stride returns the number of bytes per row.
func (img *Image) Stride() int {
	return img.Width * img.Channels * img.Depth.Bytes()
}

// Size returns the number of bytes the pixel data occupies.
func (img *Image) Size() int {
	return img.Stride() * img.Height
}

// Validate checks dimensions and buffer length.
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return errors.New(errors.ErrorTypeInvariant, "image dimensions must be positive").
			WithDetail("width", img.Width).
			WithDetail("height", img.Height)
	}
	if img.Channels < 1 || img.Channels > 4 {
		return errors.New(errors.ErrorTypeInvariant, "image channel count must be in [1, 4]").
			WithDetail("channels", img.Channels)
	}
	switch img.Depth {
	case Bits8, Bits16, Bits32:
	default:
		return errors.New(errors.ErrorTypeInvariant, "unsupported image depth").
			WithDetail("depth", int(img.Depth))
	}
	if len(img.Data) != img.Size() {
		return errors.New(errors.ErrorTypeInvariant, "image buffer does not match its dimensions").
			WithDetail("expected", img.Size()).
			WithDetail("actual", len(img.Data))
	}
	return nil
}

// SameShape reports whether two images have identical dimensions, channels
// and depth.
func (img *Image) SameShape(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height &&
		img.Channels == other.Channels && img.Depth == other.Depth
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := *img
	out.Data = append([]byte(nil), img.Data...)
	return &out
}

// Shape describes an image without its pixels.
type Shape struct {
	Width    int
	Height   int
	Channels int
	Depth    Depth
}

// Size returns the byte size of an image with this shape.
func (s Shape) Size() int {
	return s.Width * s.Height * s.Channels * s.Depth.Bytes()
}

// Shape returns the image's shape.
func (img *Image) Shape() Shape {
	return Shape{Width: img.Width, Height: img.Height, Channels: img.Channels, Depth: img.Depth}
}
