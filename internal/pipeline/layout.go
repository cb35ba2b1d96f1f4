package pipeline

import (
	"fmt"
	"path"

	"github.com/ajitpratap0/cubeconv/pkg/metrics"
)

// Layout names output objects for one camera.
//
//	image/camera{camera:02}/{frame:08}.png
//	range/camera{camera:02}/{frame:08}.png
type Layout struct {
	Camera int
}

// Dir returns the folder of a stream.
func (l Layout) Dir(stream string) string {
	return path.Join(stream, fmt.Sprintf("camera%02d", l.Camera))
}

// Key returns the object key of a frame in a stream.
func (l Layout) Key(stream string, frame FrameIndex) string {
	return path.Join(l.Dir(stream), fmt.Sprintf("%08d.png", frame))
}

// ImageKey returns the key of the color image of frame.
func (l Layout) ImageKey(frame FrameIndex) string { return l.Key(metrics.StreamImage, frame) }

// RangeKey returns the key of the inverse range image of frame.
func (l Layout) RangeKey(frame FrameIndex) string { return l.Key(metrics.StreamRange, frame) }

// Dirs returns the folders of both streams.
func (l Layout) Dirs() []string {
	return []string{l.Dir(metrics.StreamImage), l.Dir(metrics.StreamRange)}
}

// ReportKey returns the key of the run report.
func (l Layout) ReportKey() string {
	return fmt.Sprintf("report_camera%02d.json", l.Camera)
}
