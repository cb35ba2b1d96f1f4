package pipeline

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// FrameIndex identifies one frame of the dataset, starting at 0.
type FrameIndex = uint64

// State is the lifecycle state of a Driver run.
type State int32

const (
	StateInitializing State = iota
	StateStreaming
	StateDraining
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// FaceLoader supplies the color and inverse depth cubemaps of a frame.
type FaceLoader interface {
	LoadFaces(ctx context.Context, frame FrameIndex) (color, depth *images.Cubemap, err error)
}

// FrameRenderer renders one frame into device textures. Render returns
// once the pass is queued on the device.
type FrameRenderer interface {
	Upload(color, depth *images.Cubemap) error
	Render(frame FrameIndex) (*gpu.Fence, error)
}

// ImageWriter persists one finished image under an output key.
type ImageWriter interface {
	WriteImage(ctx context.Context, key string, img *images.Image, flipVertical bool) error
}
