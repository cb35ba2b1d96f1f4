package render

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// Renderer runs the remap pass on a device. The remap table is uploaded
// once; face textures are allocated on the first upload and reused for
// every frame, so all frames must share one face size.
type Renderer struct {
	device *gpu.Device
	logger *zap.Logger

	width, height int
	table         *gpu.Texture
	colorFaces    [images.NumFaces]*gpu.Texture
	depthFaces    [images.NumFaces]*gpu.Texture
	faceSize      int

	color    *gpu.Texture
	invRange *gpu.Texture
}

// NewRenderer uploads table and allocates the output textures.
func NewRenderer(device *gpu.Device, table *images.Image, logger *zap.Logger) (*Renderer, error) {
	if table.Channels != 3 || table.Depth != images.Bits32 {
		return nil, errors.New(errors.ErrorTypeInput, "remap table must be three float channels").
			WithDetail("channels", table.Channels)
	}

	r := &Renderer{
		device: device,
		logger: logger.With(zap.String("component", "renderer")),
		width:  table.Width,
		height: table.Height,
	}

	var err error
	if r.table, err = device.CreateTexture("remap_table", table.Shape()); err != nil {
		return nil, err
	}
	if _, err = r.table.Upload(table); err != nil {
		r.Release()
		return nil, err
	}
	if r.color, err = device.CreateTexture("output_color", ColorShape(r.width, r.height)); err != nil {
		r.Release()
		return nil, err
	}
	if r.invRange, err = device.CreateTexture("output_range", InvRangeShape(r.width, r.height)); err != nil {
		r.Release()
		return nil, err
	}

	r.logger.Debug("renderer ready", zap.Int("width", r.width), zap.Int("height", r.height))
	return r, nil
}

// Width returns the output width.
func (r *Renderer) Width() int { return r.width }

// Height returns the output height.
func (r *Renderer) Height() int { return r.height }

// Color returns the texture holding the last rendered color image.
func (r *Renderer) Color() *gpu.Texture { return r.color }

// InvRange returns the texture holding the last rendered inverse range.
func (r *Renderer) InvRange() *gpu.Texture { return r.invRange }

// Upload copies both cubemaps of a frame into the face textures.
func (r *Renderer) Upload(color, depth *images.Cubemap) error {
	if r.faceSize == 0 {
		if err := r.allocateFaces(color.Size()); err != nil {
			return err
		}
	}
	if color.Size() != r.faceSize || depth.Size() != r.faceSize {
		return errors.New(errors.ErrorTypeInput, "cubemap face size changed between frames").
			WithDetail("expected", r.faceSize).
			WithDetail("color", color.Size()).
			WithDetail("depth", depth.Size())
	}

	for f := images.Face(0); f < images.NumFaces; f++ {
		if _, err := r.colorFaces[f].Upload(color.Faces[f]); err != nil {
			return err
		}
		if _, err := r.depthFaces[f].Upload(depth.Faces[f]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) allocateFaces(size int) error {
	for f := images.Face(0); f < images.NumFaces; f++ {
		var err error
		r.colorFaces[f], err = r.device.CreateTexture(fmt.Sprintf("color_face_%s", f),
			images.Shape{Width: size, Height: size, Channels: 3, Depth: images.Bits8})
		if err != nil {
			return err
		}
		r.depthFaces[f], err = r.device.CreateTexture(fmt.Sprintf("depth_face_%s", f),
			images.Shape{Width: size, Height: size, Channels: 1, Depth: images.Bits16})
		if err != nil {
			return err
		}
	}
	r.faceSize = size
	r.logger.Debug("face textures allocated", zap.Int("face_size", size))
	return nil
}

// Render schedules the remap pass for the uploaded frame. It returns once
// the pass is queued; the fence signals completion.
func (r *Renderer) Render(frame uint64) (*gpu.Fence, error) {
	if r.faceSize == 0 {
		return nil, errors.New(errors.ErrorTypeInvariant, "render before any upload").
			WithDetail("frame", frame)
	}

	color := &images.Cubemap{Type: images.CubemapColor}
	depth := &images.Cubemap{Type: images.CubemapDepth}
	for f := images.Face(0); f < images.NumFaces; f++ {
		color.Faces[f] = r.colorFaces[f].Pixels()
		depth.Faces[f] = r.depthFaces[f].Pixels()
	}
	table := r.table.Pixels()
	out := Outputs{Color: r.color.Pixels(), InvRange: r.invRange.Pixels()}

	return r.device.Submit(fmt.Sprintf("remap frame %d", frame), func() error {
		return Remap(table, color, depth, out)
	})
}

// Release frees every texture the renderer owns.
func (r *Renderer) Release() {
	for _, t := range []*gpu.Texture{r.table, r.color, r.invRange} {
		if t != nil {
			t.Release()
		}
	}
	for f := range r.colorFaces {
		if r.colorFaces[f] != nil {
			r.colorFaces[f].Release()
		}
		if r.depthFaces[f] != nil {
			r.depthFaces[f].Release()
		}
	}
}
