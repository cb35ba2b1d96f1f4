package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
)

const testTimeout = 20 * time.Second

func newTestDevice(t *testing.T, latency time.Duration) *gpu.Device {
	t.Helper()
	d := gpu.NewDevice(gpu.Options{Latency: latency, Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// stampRenderer fills its outputs with the frame index, so every payload
// names the frame it came from.
type stampRenderer struct {
	device   *gpu.Device
	color    *gpu.Texture
	invRange *gpu.Texture
	uploads  int
}

func newStampRenderer(t *testing.T, device *gpu.Device, w, h int) *stampRenderer {
	t.Helper()
	color, err := device.CreateTexture("stamp_color", images.Shape{Width: w, Height: h, Channels: 3, Depth: images.Bits8})
	require.NoError(t, err)
	invRange, err := device.CreateTexture("stamp_range", images.Shape{Width: w, Height: h, Channels: 1, Depth: images.Bits16})
	require.NoError(t, err)
	t.Cleanup(func() {
		color.Release()
		invRange.Release()
	})
	return &stampRenderer{device: device, color: color, invRange: invRange}
}

func (r *stampRenderer) Upload(_, _ *images.Cubemap) error {
	r.uploads++
	return nil
}

func (r *stampRenderer) Render(frame FrameIndex) (*gpu.Fence, error) {
	c, d := r.color.Pixels(), r.invRange.Pixels()
	return r.device.Submit("stamp", func() error {
		stamp(c, d, frame)
		return nil
	})
}

func stamp(color, invRange *images.Image, frame FrameIndex) {
	for i := range color.Data {
		color.Data[i] = byte(frame)
	}
	for i := 0; i < invRange.Width*invRange.Height; i++ {
		invRange.SetUint16(i, uint16(1000+frame))
	}
}

func stampedFrame(t *testing.T, img *images.Image) FrameIndex {
	t.Helper()
	if img.Channels == 1 {
		return FrameIndex(img.Uint16(0) - 1000)
	}
	return FrameIndex(img.Data[0])
}

// fakeLoader returns empty cubemaps and lets tests hook every load.
type fakeLoader struct {
	mu     sync.Mutex
	loaded []FrameIndex
	onLoad func(frame FrameIndex) error
}

func (l *fakeLoader) LoadFaces(_ context.Context, frame FrameIndex) (*images.Cubemap, *images.Cubemap, error) {
	l.mu.Lock()
	l.loaded = append(l.loaded, frame)
	hook := l.onLoad
	l.mu.Unlock()

	if hook != nil {
		if err := hook(frame); err != nil {
			return nil, nil, err
		}
	}
	return &images.Cubemap{Type: images.CubemapColor}, &images.Cubemap{Type: images.CubemapDepth}, nil
}

// recordingWriter keeps a copy of every image it is asked to write.
type recordingWriter struct {
	mu     sync.Mutex
	images map[string]*images.Image
	order  []string

	delay  time.Duration
	failOn string
	failed error

	duplicates int

	active    atomic.Int32
	maxActive atomic.Int32
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{images: make(map[string]*images.Image)}
}

func (w *recordingWriter) WriteImage(_ context.Context, key string, img *images.Image, _ bool) error {
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxActive.Load()
		if n <= m || w.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	if key == w.failOn {
		return w.failed
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.images[key]; dup {
		w.duplicates++
	}
	w.images[key] = img.Clone()
	w.order = append(w.order, key)
	return nil
}

func (w *recordingWriter) get(key string) *images.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.images[key]
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.images)
}

type driverFixture struct {
	driver   *Driver
	device   *gpu.Device
	renderer *stampRenderer
	loader   *fakeLoader
	writer   *recordingWriter
	layout   Layout
}

type fixtureOptions struct {
	ringCapacity  int
	writeCapacity int
	latency       time.Duration
}

func newDriverFixture(t *testing.T, opts fixtureOptions) *driverFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	device := newTestDevice(t, opts.latency)
	renderer := newStampRenderer(t, device, 4, 3)

	imageRing, err := NewStagingRing(device, metrics.StreamImage, opts.ringCapacity, renderer.color.Shape(), nil, logger)
	require.NoError(t, err)
	t.Cleanup(imageRing.Release)
	rangeRing, err := NewStagingRing(device, metrics.StreamRange, opts.ringCapacity, renderer.invRange.Shape(), nil, logger)
	require.NoError(t, err)
	t.Cleanup(rangeRing.Release)

	f := &driverFixture{
		device:   device,
		renderer: renderer,
		loader:   &fakeLoader{},
		writer:   newRecordingWriter(),
		layout:   Layout{Camera: 0},
	}
	f.driver, err = NewDriver(DriverConfig{
		Loader:   f.loader,
		Renderer: renderer,
		Writer:   f.writer,
		Streams: []*Stream{
			{Name: metrics.StreamImage, Ring: imageRing, Source: renderer.color, Flip: true},
			{Name: metrics.StreamRange, Ring: rangeRing, Source: renderer.invRange, Flip: true},
		},
		Layout:          f.layout,
		WriteCapacity:   opts.writeCapacity,
		Logger:          logger,
		SummaryInterval: 2,
	})
	require.NoError(t, err)
	return f
}

// assertFramesWritten checks that frames 0..n-1 were written exactly once
// in both streams with the content rendered for that frame.
func (f *driverFixture) assertFramesWritten(t *testing.T, n int) {
	t.Helper()
	require.Zero(t, f.writer.duplicates)
	require.Equal(t, 2*n, f.writer.count())
	for i := 0; i < n; i++ {
		frame := FrameIndex(i)
		img := f.writer.get(f.layout.ImageKey(frame))
		require.NotNil(t, img, "image of frame %d", i)
		require.Equal(t, frame, stampedFrame(t, img))

		rng := f.writer.get(f.layout.RangeKey(frame))
		require.NotNil(t, rng, "range of frame %d", i)
		require.Equal(t, frame, stampedFrame(t, rng))
	}
}

func sequence(n int) []FrameIndex {
	out := make([]FrameIndex, n)
	for i := range out {
		out[i] = FrameIndex(i)
	}
	return out
}
