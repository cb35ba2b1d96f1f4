package images

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/cubeconv/pkg/compression"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/mmap"
)

// ReadRawFloat reads exactly width*height*channels little-endian float32
// samples from r. Short input and trailing bytes are both input errors.
func ReadRawFloat(r io.Reader, width, height, channels int) (*Image, error) {
	img := New(width, height, channels, Bits32)
	if n, err := io.ReadFull(r, img.Data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "raw float image is too short").
			WithDetail("expected", len(img.Data)).
			WithDetail("actual", n)
	}

	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n != 0 {
		return nil, errors.New(errors.ErrorTypeInput, "raw float image is too long").
			WithDetail("expected", len(img.Data))
	}
	return img, nil
}

// LoadRawFloatImage reads a raw float32 image file. Files ending in a
// compression extension (".zst", ".lz4", ...) are decompressed on the fly;
// uncompressed files are memory-mapped.
func LoadRawFloatImage(path string, width, height, channels int) (*Image, error) {
	alg := compression.AlgorithmForPath(path)
	if alg == compression.None {
		return mapRawFloatImage(path, width, height, channels)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to open raw float image").
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	r, err := compression.NewReader(f, alg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to open decompressor").
			WithDetail("path", path)
	}
	defer func() { _ = r.Close() }()

	img, err := ReadRawFloat(r, width, height, channels)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to load raw float image").
			WithDetail("path", path)
	}
	return img, nil
}

func mapRawFloatImage(path string, width, height, channels int) (*Image, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to map raw float image").
			WithDetail("path", path)
	}
	defer func() { _ = m.Close() }()

	img := New(width, height, channels, Bits32)
	if m.Len() != len(img.Data) {
		return nil, errors.New(errors.ErrorTypeInput, "raw float image has the wrong size").
			WithDetail("path", path).
			WithDetail("expected", len(img.Data)).
			WithDetail("actual", m.Len())
	}
	copy(img.Data, m.Bytes())
	return img, nil
}

// WriteRawFloat writes the samples of a float image to w.
func WriteRawFloat(w io.Writer, img *Image) error {
	if img.Depth != Bits32 {
		return errors.New(errors.ErrorTypeInvariant, "raw float output needs a 32-bit image").
			WithDetail("depth", img.Depth.String())
	}
	if _, err := w.Write(img.Data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write raw float image")
	}
	return nil
}

// Float32 returns sample i of a float image.
func (img *Image) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(img.Data[4*i:]))
}

// SetFloat32 stores sample i of a float image.
func (img *Image) SetFloat32(i int, v float32) {
	binary.LittleEndian.PutUint32(img.Data[4*i:], math.Float32bits(v))
}

// Uint16 returns sample i of a 16-bit image.
func (img *Image) Uint16(i int) uint16 {
	return binary.LittleEndian.Uint16(img.Data[2*i:])
}

// SetUint16 stores sample i of a 16-bit image.
func (img *Image) SetUint16(i int, v uint16) {
	binary.LittleEndian.PutUint16(img.Data[2*i:], v)
}
