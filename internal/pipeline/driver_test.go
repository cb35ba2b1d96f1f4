package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/testutil"
)

func TestDriverWritesEveryFrameOnce(t *testing.T) {
	tests := []struct {
		name          string
		frames        int
		ringCapacity  int
		writeCapacity int
	}{
		{name: "ring of two", frames: 7, ringCapacity: 2, writeCapacity: 8},
		{name: "ring of one", frames: 5, ringCapacity: 1, writeCapacity: 1},
		{name: "deep ring", frames: 9, ringCapacity: 4, writeCapacity: 2},
		{name: "fewer frames than slots", frames: 2, ringCapacity: 3, writeCapacity: 8},
		{name: "exactly one ring of frames", frames: 3, ringCapacity: 3, writeCapacity: 8},
		{name: "single frame", frames: 1, ringCapacity: 2, writeCapacity: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDriverFixture(t, fixtureOptions{ringCapacity: tt.ringCapacity, writeCapacity: tt.writeCapacity})

			result, err := f.driver.Run(testutil.TestContext(t, testTimeout), uint64(tt.frames))
			require.NoError(t, err)

			assert.Equal(t, StateComplete, result.State)
			assert.Equal(t, StateComplete, f.driver.State())
			assert.False(t, result.Stopped)
			assert.Equal(t, uint64(tt.frames), result.Frames)
			assert.Equal(t, uint64(tt.frames), result.Written)
			assert.Equal(t, sequence(tt.frames), result.Evicted)
			assert.Equal(t, tt.frames, f.renderer.uploads)
			f.assertFramesWritten(t, tt.frames)
		})
	}
}

func TestDriverZeroFrames(t *testing.T) {
	f := newDriverFixture(t, fixtureOptions{ringCapacity: 2, writeCapacity: 4})

	result, err := f.driver.Run(testutil.TestContext(t, testTimeout), 0)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, result.State)
	assert.Zero(t, result.Frames)
	assert.Empty(t, result.Evicted)
	assert.Zero(t, f.writer.count())
	assert.Empty(t, f.loader.loaded)
}

func TestDriverWithSlowDevice(t *testing.T) {
	// Every readback blocks on the device, and writes are slower still.
	f := newDriverFixture(t, fixtureOptions{ringCapacity: 2, writeCapacity: 2, latency: 2 * time.Millisecond})
	f.writer.delay = 3 * time.Millisecond

	const frames = 8
	result, err := f.driver.Run(testutil.TestContext(t, testTimeout), frames)
	require.NoError(t, err)

	assert.Equal(t, sequence(frames), result.Evicted)
	f.assertFramesWritten(t, frames)
	// Two streams per task, two tasks at most
	assert.LessOrEqual(t, f.writer.maxActive.Load(), int32(2))
}

func TestDriverStopDrainsInFlightFrames(t *testing.T) {
	tests := []struct {
		name         string
		ringCapacity int
		stopAt       FrameIndex
	}{
		// Frame 1 is still in the ring when the stop arrives
		{name: "stop before the ring fills", ringCapacity: 3, stopAt: 1},
		{name: "stop while streaming", ringCapacity: 2, stopAt: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDriverFixture(t, fixtureOptions{ringCapacity: tt.ringCapacity, writeCapacity: 4})

			ctx, cancel := context.WithCancel(testutil.TestContext(t, testTimeout))
			defer cancel()
			f.loader.onLoad = func(frame FrameIndex) error {
				if frame == tt.stopAt {
					cancel()
				}
				return nil
			}

			result, err := f.driver.Run(ctx, 100)
			require.NoError(t, err)

			// The frame being loaded when the stop arrives is finished
			n := int(tt.stopAt) + 1
			assert.True(t, result.Stopped)
			assert.Equal(t, StateComplete, result.State)
			assert.Equal(t, uint64(n), result.Frames)
			assert.Equal(t, sequence(n), result.Evicted)
			f.assertFramesWritten(t, n)
		})
	}
}

func TestDriverWriteFailureIsFatal(t *testing.T) {
	f := newDriverFixture(t, fixtureOptions{ringCapacity: 2, writeCapacity: 1})
	boom := fmt.Errorf("no space left on device")
	f.writer.failOn = f.layout.RangeKey(1)
	f.writer.failed = boom

	result, err := f.driver.Run(testutil.TestContext(t, testTimeout), 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutput))

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateFailed, f.driver.State())
	assert.Less(t, result.Frames, uint64(20))
	assert.Nil(t, f.writer.get(f.layout.RangeKey(1)))
	// Nothing is left running once Run returns
	assert.Zero(t, f.driver.Scheduler().Outstanding())
}

func TestDriverLoadFailure(t *testing.T) {
	f := newDriverFixture(t, fixtureOptions{ringCapacity: 2, writeCapacity: 4})
	f.loader.onLoad = func(frame FrameIndex) error {
		if frame == 3 {
			return errors.New(errors.ErrorTypeInput, "missing face").WithDetail("frame", frame)
		}
		return nil
	}

	result, err := f.driver.Run(testutil.TestContext(t, testTimeout), 10)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInput))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, uint64(3), result.Frames)

	// Frames already handed to the scheduler were written before Run returned
	for _, frame := range result.Evicted {
		assert.NotNil(t, f.writer.get(f.layout.ImageKey(frame)))
	}
}

func TestDriverRejectsMismatchedRings(t *testing.T) {
	f := newDriverFixture(t, fixtureOptions{ringCapacity: 2, writeCapacity: 1})
	device := f.device

	small, err := NewStagingRing(device, "range", 1, f.renderer.invRange.Shape(), nil, testutil.TestLogger(t))
	require.NoError(t, err)
	defer small.Release()
	large, err := NewStagingRing(device, "image", 2, f.renderer.color.Shape(), nil, testutil.TestLogger(t))
	require.NoError(t, err)
	defer large.Release()

	_, err = NewDriver(DriverConfig{
		Loader:   f.loader,
		Renderer: f.renderer,
		Writer:   f.writer,
		Streams: []*Stream{
			{Name: "image", Ring: large, Source: f.renderer.color},
			{Name: "range", Ring: small, Source: f.renderer.invRange},
		},
		WriteCapacity: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "complete", StateComplete.String())
	assert.Equal(t, "failed", StateFailed.String())
}
