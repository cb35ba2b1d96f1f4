package images

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// NumFaces is the number of faces of a cubemap.
const NumFaces = 6

// Face indexes a cubemap face. The order matches the file suffixes _00 to _05.
type Face int

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

var faceNames = [NumFaces]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (f Face) String() string {
	if f < 0 || int(f) >= NumFaces {
		return fmt.Sprintf("Face(%d)", int(f))
	}
	return faceNames[f]
}

// CubemapType selects the color or the inverse depth cubemap of a frame.
type CubemapType int

const (
	// CubemapColor is 8-bit RGB, stored under image/
	CubemapColor CubemapType = iota
	// CubemapDepth is 16-bit gray inverse depth, stored under depth/
	CubemapDepth
)

// SubFolder returns the dataset folder holding this cubemap type.
func (t CubemapType) SubFolder() string {
	if t == CubemapDepth {
		return "depth"
	}
	return "image"
}

// Depth returns the sample depth faces of this type are stored with.
func (t CubemapType) Depth() Depth {
	if t == CubemapDepth {
		return Bits16
	}
	return Bits8
}

// Channels returns the channel count faces of this type decode to.
func (t CubemapType) Channels() int {
	if t == CubemapDepth {
		return 1
	}
	return 3
}

func (t CubemapType) String() string {
	if t == CubemapDepth {
		return "depth"
	}
	return "color"
}

// Cubemap is the six faces of one frame, all square and of equal shape.
type Cubemap struct {
	Type  CubemapType
	Faces [NumFaces]*Image
}

// Size returns the edge length of the faces.
func (c *Cubemap) Size() int {
	return c.Faces[0].Width
}

// FacePath returns {root}/{image|depth}/camera{camera:02}/{frame:08}_{face:02}.png.
func FacePath(root string, t CubemapType, camera int, frame uint64, face Face) string {
	return filepath.Join(root, t.SubFolder(),
		fmt.Sprintf("camera%02d", camera),
		fmt.Sprintf("%08d_%02d.png", frame, int(face)))
}

// LoadCubemap loads the six faces of one frame in parallel. A missing or
// malformed face is an input error naming the face path.
func LoadCubemap(ctx context.Context, root string, t CubemapType, camera int, frame uint64) (*Cubemap, error) {
	cube := &Cubemap{Type: t}

	g, ctx := errgroup.WithContext(ctx)
	for face := Face(0); face < NumFaces; face++ {
		face := face
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := FacePath(root, t, camera, frame, face)
			img, err := LoadPNG(path, t.Depth())
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInput, "failed to load cubemap face").
					WithDetail("face", face.String()).
					WithDetail("frame", frame)
			}
			cube.Faces[face] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := cube.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "inconsistent cubemap faces").
			WithDetail("frame", frame).
			WithDetail("type", t.String())
	}
	return cube, nil
}

// Validate checks that all faces are present, square and share one shape
// matching the cubemap type.
func (c *Cubemap) Validate() error {
	first := c.Faces[0]
	if first == nil {
		return errors.New(errors.ErrorTypeInput, "cubemap face is missing").WithDetail("face", FacePosX.String())
	}
	if first.Width != first.Height {
		return errors.New(errors.ErrorTypeInput, "cubemap faces must be square").
			WithDetail("width", first.Width).
			WithDetail("height", first.Height)
	}
	if first.Channels != c.Type.Channels() || first.Depth != c.Type.Depth() {
		return errors.New(errors.ErrorTypeInput, "cubemap face has the wrong format").
			WithDetail("channels", first.Channels).
			WithDetail("depth", first.Depth.String())
	}
	for f := Face(1); f < NumFaces; f++ {
		img := c.Faces[f]
		if img == nil {
			return errors.New(errors.ErrorTypeInput, "cubemap face is missing").WithDetail("face", f.String())
		}
		if !img.SameShape(first) {
			return errors.New(errors.ErrorTypeInput, "cubemap faces differ in shape").WithDetail("face", f.String())
		}
	}
	return nil
}
