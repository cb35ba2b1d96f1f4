package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
)

// BufferMapState represents the mapping state of a staging buffer.
type BufferMapState int

const (
	// BufferMapStateUnmapped means the host cannot see the buffer.
	BufferMapStateUnmapped BufferMapState = iota
	// BufferMapStatePending means Map is waiting for the device.
	BufferMapStatePending
	// BufferMapStateMapped means the host may read the buffer.
	BufferMapStateMapped
)

func (s BufferMapState) String() string {
	switch s {
	case BufferMapStateUnmapped:
		return "Unmapped"
	case BufferMapStatePending:
		return "Pending"
	case BufferMapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Buffer is a host-readable transfer buffer that textures are copied into.
//
// Lifecycle:
//  1. CopyFromTexture schedules the device-side copy
//  2. Map blocks until that copy has executed and exposes the bytes
//  3. Unmap returns the buffer to the device
type Buffer struct {
	*Handle
	device *Device
	label  string

	mu       sync.Mutex
	size     int
	data     []byte
	mapState BufferMapState
	copied   *Fence
}

// CreateStagingBuffer allocates a staging buffer of size bytes.
func (d *Device) CreateStagingBuffer(label string, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrorTypeDevice, "invalid staging buffer size").
			WithDetail("label", label).
			WithDetail("size", size)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	return &Buffer{
		Handle: d.track(label),
		device: d,
		label:  label,
		size:   size,
		data:   make([]byte, size),
	}, nil
}

// Label returns the debug name of the buffer.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// MapState returns the current mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapState
}

// CopyFromTexture schedules a copy of src into the buffer and returns
// without waiting for it. The buffer must be unmapped and exactly as large
// as the texture.
func (b *Buffer) CopyFromTexture(src *Texture) (*Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Released() || src.Released() {
		return nil, errors.New(errors.ErrorTypeDevice, "copy uses a released resource").
			WithDetail("buffer", b.label).
			WithDetail("texture", src.label)
	}
	if b.mapState != BufferMapStateUnmapped {
		return nil, errors.New(errors.ErrorTypeInvariant, "copy into a mapped staging buffer").
			WithDetail("buffer", b.label).
			WithDetail("state", b.mapState.String())
	}
	if len(src.data) != b.size {
		return nil, errors.New(errors.ErrorTypeInvariant, "staging buffer does not match texture size").
			WithDetail("buffer", b.label).
			WithDetail("buffer_size", b.size).
			WithDetail("texture_size", len(src.data))
	}

	dst, from := b.data, src.data
	fence, err := b.device.Submit("readback "+src.label+" -> "+b.label, func() error {
		copy(dst, from)
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.copied = fence
	return fence, nil
}

// Map blocks until the last scheduled copy has executed and returns the
// buffer contents. The slice is valid until Unmap.
func (b *Buffer) Map(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	if b.Released() {
		b.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeDevice, "map of a released buffer").WithDetail("buffer", b.label)
	}
	if b.mapState != BufferMapStateUnmapped {
		state := b.mapState
		b.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeInvariant, "buffer is already mapped or mapping is pending").
			WithDetail("buffer", b.label).
			WithDetail("state", state.String())
	}
	b.mapState = BufferMapStatePending
	fence := b.copied
	b.mu.Unlock()

	if fence != nil {
		start := time.Now()
		err := fence.Wait(ctx)
		metrics.MapWait.Observe(time.Since(start).Seconds())
		if err != nil {
			b.mu.Lock()
			b.mapState = BufferMapStateUnmapped
			b.mu.Unlock()
			return nil, errors.Wrap(err, errors.ErrorTypeDevice, "failed to map staging buffer").
				WithDetail("buffer", b.label)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapState = BufferMapStateMapped
	return b.data, nil
}

// Unmap returns a mapped buffer to the device.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapState != BufferMapStateMapped {
		return errors.New(errors.ErrorTypeInvariant, "buffer is not mapped").
			WithDetail("buffer", b.label).
			WithDetail("state", b.mapState.String())
	}
	b.mapState = BufferMapStateUnmapped
	return nil
}
