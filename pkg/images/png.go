package images

import (
	"bufio"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/pool"
)

// encoderBuffers recycles png.Encoder scratch state across writes.
type encoderBuffers struct {
	p *pool.Pool[*png.EncoderBuffer]
}

func (b encoderBuffers) Get() *png.EncoderBuffer  { return b.p.Get() }
func (b encoderBuffers) Put(e *png.EncoderBuffer) { b.p.Put(e) }

var encoder = &png.Encoder{
	CompressionLevel: png.DefaultCompression,
	BufferPool: encoderBuffers{
		p: pool.New(func() *png.EncoderBuffer { return new(png.EncoderBuffer) }, nil),
	},
}

// DecodePNG decodes a PNG into an Image. Gray images yield one channel,
// everything else three (alpha is dropped). expected is the sample depth
// the caller requires; a mismatch is an input error.
func DecodePNG(r io.Reader, expected Depth) (*Image, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to decode PNG")
	}

	var img *Image
	switch s := src.(type) {
	case *image.Gray:
		img = New(s.Rect.Dx(), s.Rect.Dy(), 1, Bits8)
		for y := 0; y < img.Height; y++ {
			copy(img.Data[y*img.Stride():(y+1)*img.Stride()], s.Pix[y*s.Stride:y*s.Stride+img.Width])
		}
	case *image.Gray16:
		img = New(s.Rect.Dx(), s.Rect.Dy(), 1, Bits16)
		for y := 0; y < img.Height; y++ {
			row := s.Pix[y*s.Stride:]
			for x := 0; x < img.Width; x++ {
				v := uint16(row[2*x])<<8 | uint16(row[2*x+1])
				binary.LittleEndian.PutUint16(img.Data[y*img.Stride()+2*x:], v)
			}
		}
	case *image.RGBA:
		// The decoder only produces RGBA for opaque truecolor files
		img = New(s.Rect.Dx(), s.Rect.Dy(), 3, Bits8)
		for y := 0; y < img.Height; y++ {
			row := s.Pix[y*s.Stride:]
			out := img.Data[y*img.Stride():]
			for x := 0; x < img.Width; x++ {
				out[3*x], out[3*x+1], out[3*x+2] = row[4*x], row[4*x+1], row[4*x+2]
			}
		}
	case *image.RGBA64, *image.NRGBA64:
		b := src.Bounds()
		img = New(b.Dx(), b.Dy(), 3, Bits16)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				o := y*img.Stride() + 6*x
				binary.LittleEndian.PutUint16(img.Data[o:], c.R)
				binary.LittleEndian.PutUint16(img.Data[o+2:], c.G)
				binary.LittleEndian.PutUint16(img.Data[o+4:], c.B)
			}
		}
	default:
		b := src.Bounds()
		img = New(b.Dx(), b.Dy(), 3, Bits8)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				o := y*img.Stride() + 3*x
				img.Data[o], img.Data[o+1], img.Data[o+2] = c.R, c.G, c.B
			}
		}
	}

	if expected != 0 && img.Depth != expected {
		return nil, errors.New(errors.ErrorTypeInput, "unexpected PNG bit depth").
			WithDetail("expected", expected.String()).
			WithDetail("actual", img.Depth.String())
	}
	return img, nil
}

// LoadPNG reads and decodes a PNG file.
func LoadPNG(path string, expected Depth) (*Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to open PNG").
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	img, err := DecodePNG(bufio.NewReader(f), expected)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to load PNG").
			WithDetail("path", path)
	}
	return img, nil
}

// EncodePNG writes img as PNG. Only 8 and 16-bit images with one or three
// channels can be encoded. With flipVertical the last row is written first,
// which turns a bottom-up device texture into a top-down file.
func EncodePNG(w io.Writer, img *Image, flipVertical bool) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if img.Channels != 1 && img.Channels != 3 {
		return errors.New(errors.ErrorTypeOutput, "PNG output needs 1 or 3 channels").
			WithDetail("channels", img.Channels)
	}

	srcRow := func(y int) []byte {
		if flipVertical {
			y = img.Height - 1 - y
		}
		return img.Data[y*img.Stride() : (y+1)*img.Stride()]
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	var dst image.Image
	switch {
	case img.Depth == Bits8 && img.Channels == 1:
		g := image.NewGray(rect)
		for y := 0; y < img.Height; y++ {
			copy(g.Pix[y*g.Stride:], srcRow(y))
		}
		dst = g
	case img.Depth == Bits8 && img.Channels == 3:
		c := image.NewNRGBA(rect)
		for y := 0; y < img.Height; y++ {
			row := srcRow(y)
			out := c.Pix[y*c.Stride:]
			for x := 0; x < img.Width; x++ {
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = row[3*x], row[3*x+1], row[3*x+2], 0xff
			}
		}
		dst = c
	case img.Depth == Bits16 && img.Channels == 1:
		g := image.NewGray16(rect)
		for y := 0; y < img.Height; y++ {
			row := srcRow(y)
			out := g.Pix[y*g.Stride:]
			for x := 0; x < img.Width; x++ {
				binary.BigEndian.PutUint16(out[2*x:], binary.LittleEndian.Uint16(row[2*x:]))
			}
		}
		dst = g
	case img.Depth == Bits16 && img.Channels == 3:
		c := image.NewNRGBA64(rect)
		for y := 0; y < img.Height; y++ {
			row := srcRow(y)
			out := c.Pix[y*c.Stride:]
			for x := 0; x < img.Width; x++ {
				for ch := 0; ch < 3; ch++ {
					binary.BigEndian.PutUint16(out[8*x+2*ch:], binary.LittleEndian.Uint16(row[6*x+2*ch:]))
				}
				out[8*x+6], out[8*x+7] = 0xff, 0xff
			}
		}
		dst = c
	default:
		return errors.New(errors.ErrorTypeOutput, "PNG output needs 8 or 16-bit samples").
			WithDetail("depth", img.Depth.String())
	}

	if err := encoder.Encode(w, dst); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to encode PNG")
	}
	return nil
}

// WritePNG encodes img into path. The parent directory must exist.
func WritePNG(path string, img *Image, flipVertical bool) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to create PNG").
			WithDetail("path", path)
	}

	bw := bufio.NewWriter(f)
	if err := EncodePNG(bw, img, flipVertical); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write PNG").
			WithDetail("path", path)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write PNG").
			WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to close PNG").
			WithDetail("path", path)
	}
	return nil
}
