package gpu

import (
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// Texture is an image resident in device memory.
type Texture struct {
	*Handle
	device *Device
	label  string
	shape  images.Shape
	data   []byte
}

// CreateTexture allocates a zeroed texture of the given shape.
func (d *Device) CreateTexture(label string, shape images.Shape) (*Texture, error) {
	if shape.Width <= 0 || shape.Height <= 0 || shape.Size() <= 0 {
		return nil, errors.New(errors.ErrorTypeDevice, "invalid texture shape").
			WithDetail("label", label).
			WithDetail("width", shape.Width).
			WithDetail("height", shape.Height).
			WithDetail("channels", shape.Channels)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	return &Texture{
		Handle: d.track(label),
		device: d,
		label:  label,
		shape:  shape,
		data:   make([]byte, shape.Size()),
	}, nil
}

// Label returns the debug name of the texture.
func (t *Texture) Label() string { return t.label }

// Shape returns the texture format.
func (t *Texture) Shape() images.Shape { return t.shape }

// Pixels returns an image aliasing device memory. Only commands running on
// the device timeline may read or write its pixels.
func (t *Texture) Pixels() *images.Image {
	return &images.Image{
		Width:    t.shape.Width,
		Height:   t.shape.Height,
		Channels: t.shape.Channels,
		Depth:    t.shape.Depth,
		Data:     t.data,
	}
}

// Upload schedules a copy of img into the texture. The host bytes are
// captured before Upload returns, so img may be reused immediately.
func (t *Texture) Upload(img *images.Image) (*Fence, error) {
	if t.Released() {
		return nil, errors.New(errors.ErrorTypeDevice, "texture is released").WithDetail("label", t.label)
	}
	if img.Shape() != t.shape {
		return nil, errors.New(errors.ErrorTypeInvariant, "upload does not match texture shape").
			WithDetail("label", t.label).
			WithDetail("width", img.Width).
			WithDetail("height", img.Height).
			WithDetail("channels", img.Channels)
	}

	staged := make([]byte, len(img.Data))
	copy(staged, img.Data)
	dst := t.data
	return t.device.Submit("upload "+t.label, func() error {
		copy(dst, staged)
		return nil
	})
}
