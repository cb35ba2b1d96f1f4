package gpu

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

func newTestDevice(t *testing.T, latency time.Duration) *Device {
	d := NewDevice(Options{Latency: latency, Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestHandleReleaseOnce(t *testing.T) {
	var calls atomic.Int32
	h := newHandle(7, func() { calls.Add(1) })

	assert.Equal(t, uint64(7), h.ID())
	assert.False(t, h.Released())
	h.Release()
	h.Release()
	assert.True(t, h.Released())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeviceRunsCommandsInOrder(t *testing.T) {
	d := newTestDevice(t, 0)

	var order []int
	var last *Fence
	for i := 0; i < 50; i++ {
		i := i
		f, err := d.Submit("step", func() error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
		last = f
	}
	require.NoError(t, last.Wait(context.Background()))

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, int64(50), d.Executed())
}

func TestDeviceLostAfterFailure(t *testing.T) {
	d := newTestDevice(t, 0)

	f, err := d.Submit("broken", func() error { return io.ErrUnexpectedEOF })
	require.NoError(t, err)
	err = f.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDevice))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = d.Submit("after", func() error { return nil })
	assert.Error(t, err)
	assert.Error(t, d.Err())
}

func TestDeviceClose(t *testing.T) {
	d := NewDevice(Options{Logger: zaptest.NewLogger(t)})
	_, err := d.CreateTexture("leaked", images.Shape{Width: 2, Height: 2, Channels: 1, Depth: images.Bits8})
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, []string{"leaked"}, d.LiveResources())

	_, err = d.Submit("late", func() error { return nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeDevice))
}

func TestFenceWaitHonoursContext(t *testing.T) {
	d := newTestDevice(t, 0)

	release := make(chan struct{})
	f, err := d.Submit("blocked", func() error {
		<-release
		return nil
	})
	require.NoError(t, err)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = f.Wait(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled))
	assert.False(t, f.Signalled())
}

func TestTextureReleaseTracksResources(t *testing.T) {
	d := newTestDevice(t, 0)

	tex, err := d.CreateTexture("faces", images.Shape{Width: 4, Height: 4, Channels: 3, Depth: images.Bits8})
	require.NoError(t, err)
	assert.Equal(t, []string{"faces"}, d.LiveResources())

	tex.Release()
	assert.Empty(t, d.LiveResources())

	_, err = tex.Upload(images.New(4, 4, 3, images.Bits8))
	assert.Error(t, err)

	_, err = d.CreateTexture("bad", images.Shape{Width: 0, Height: 4, Channels: 3, Depth: images.Bits8})
	assert.Error(t, err)
}
