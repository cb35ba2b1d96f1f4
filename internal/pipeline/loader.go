package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// DatasetLoader reads cubemaps from the dataset layout
// {root}/{image|depth}/camera{camera:02}/{frame:08}_{face:02}.png.
type DatasetLoader struct {
	Root   string
	Camera int
}

// LoadFaces implements FaceLoader. Both cubemaps load concurrently.
func (l DatasetLoader) LoadFaces(ctx context.Context, frame FrameIndex) (color, depth *images.Cubemap, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		color, err = images.LoadCubemap(ctx, l.Root, images.CubemapColor, l.Camera, frame)
		return err
	})
	g.Go(func() error {
		var err error
		depth, err = images.LoadCubemap(ctx, l.Root, images.CubemapDepth, l.Camera, frame)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if color.Size() != depth.Size() {
		return nil, nil, errors.New(errors.ErrorTypeInput, "color and depth faces differ in size").
			WithDetail("frame", frame).
			WithDetail("color", color.Size()).
			WithDetail("depth", depth.Size())
	}
	return color, depth, nil
}
