package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
	"github.com/ajitpratap0/cubeconv/pkg/pool"
)

// PendingRead pairs a staging slot with the frame it is transferring.
type PendingRead struct {
	Slot  int
	Frame FrameIndex
}

// StagingRing is a fixed-capacity FIFO of device to host transfers for one
// output stream. Every slot is a staging buffer sized for one image of the
// ring's shape.
//
// Reads are evicted strictly in the order they were queued. A ring of
// capacity K kept full gives the device K-1 later frames of work to finish
// a copy before the host maps it; when it has not, PopOldestRead blocks
// until the copy fence is signalled.
//
// A StagingRing is used from the driver goroutine only, except Recycle
// which write tasks call.
type StagingRing struct {
	name     string
	shape    images.Shape
	slots    []*gpu.Buffer
	pending  []PendingRead
	next     int
	payloads *pool.BufferPool
	logger   *zap.Logger

	// pooled buffer of every payload not yet recycled
	mu         sync.Mutex
	checkedOut map[*images.Image]*[]byte
}

// NewStagingRing allocates capacity staging buffers on device. Payload
// buffers come from payloads when it is not nil.
func NewStagingRing(device *gpu.Device, name string, capacity int, shape images.Shape, payloads *pool.BufferPool, logger *zap.Logger) (*StagingRing, error) {
	if capacity <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "ring capacity must be positive").
			WithDetail("ring", name).
			WithDetail("capacity", capacity)
	}
	if payloads == nil {
		payloads = pool.NewBufferPool(shape.Size())
	}

	r := &StagingRing{
		name:     name,
		shape:    shape,
		slots:    make([]*gpu.Buffer, 0, capacity),
		pending:  make([]PendingRead, 0, capacity),
		payloads: payloads,
		logger:   logger.With(zap.String("ring", name)),

		checkedOut: make(map[*images.Image]*[]byte, capacity),
	}
	for i := 0; i < capacity; i++ {
		buf, err := device.CreateStagingBuffer(fmt.Sprintf("%s_staging_%d", name, i), shape.Size())
		if err != nil {
			r.Release()
			return nil, errors.Wrap(err, errors.ErrorTypeDevice, "failed to allocate staging buffer").
				WithDetail("ring", name).
				WithDetail("slot", i)
		}
		r.slots = append(r.slots, buf)
	}
	return r, nil
}

// Name returns the stream the ring serves.
func (r *StagingRing) Name() string { return r.name }

// Capacity returns the number of slots.
func (r *StagingRing) Capacity() int { return len(r.slots) }

// Len returns the number of pending reads.
func (r *StagingRing) Len() int { return len(r.pending) }

// Shape returns the image format of the ring.
func (r *StagingRing) Shape() images.Shape { return r.shape }

// IsFull reports whether every slot is pending.
func (r *StagingRing) IsFull() bool { return len(r.pending) == len(r.slots) }

// HasPending reports whether at least one slot is pending.
func (r *StagingRing) HasPending() bool { return len(r.pending) > 0 }

// Pending returns the pending reads, oldest first.
func (r *StagingRing) Pending() []PendingRead {
	return append([]PendingRead(nil), r.pending...)
}

// QueueReadFromSource schedules a copy of src into the next free slot for
// frame. It does not wait for the device. Queuing on a full ring is an
// invariant violation; evict with PopOldestRead first.
func (r *StagingRing) QueueReadFromSource(frame FrameIndex, src *gpu.Texture) error {
	if r.IsFull() {
		return errors.New(errors.ErrorTypeInvariant, "queue on a full staging ring").
			WithDetail("ring", r.name).
			WithDetail("frame", frame)
	}
	if src.Shape() != r.shape {
		return errors.New(errors.ErrorTypeInvariant, "readback source does not match ring shape").
			WithDetail("ring", r.name).
			WithDetail("source", src.Label())
	}

	slot := r.next
	if _, err := r.slots[slot].CopyFromTexture(src); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDevice, "failed to queue readback").
			WithDetail("ring", r.name).
			WithDetail("frame", frame)
	}
	r.next = (r.next + 1) % len(r.slots)
	r.pending = append(r.pending, PendingRead{Slot: slot, Frame: frame})
	metrics.RingOccupancy.WithLabelValues(r.name).Set(float64(len(r.pending)))
	return nil
}

// PopOldestRead maps the oldest pending slot, blocking until its copy has
// executed, and returns the frame it holds with a copy of its bytes. The
// payload is owned by the caller; hand it back with Recycle when done.
func (r *StagingRing) PopOldestRead(ctx context.Context) (FrameIndex, *images.Image, error) {
	if !r.HasPending() {
		return 0, nil, errors.New(errors.ErrorTypeInvariant, "pop from a staging ring with nothing pending").
			WithDetail("ring", r.name)
	}

	oldest := r.pending[0]
	buf := r.slots[oldest.Slot]
	data, err := buf.Map(ctx)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.ErrorTypeDevice, "failed to map staging slot").
			WithDetail("ring", r.name).
			WithDetail("slot", oldest.Slot).
			WithDetail("frame", oldest.Frame)
	}

	pooled := r.payloads.Get(r.shape.Size())
	payload := &images.Image{
		Width:    r.shape.Width,
		Height:   r.shape.Height,
		Channels: r.shape.Channels,
		Depth:    r.shape.Depth,
		Data:     *pooled,
	}
	copy(payload.Data, data)

	if err := buf.Unmap(); err != nil {
		r.payloads.Put(pooled)
		return 0, nil, errors.Wrap(err, errors.ErrorTypeDevice, "failed to unmap staging slot").
			WithDetail("ring", r.name).
			WithDetail("slot", oldest.Slot)
	}

	r.mu.Lock()
	r.checkedOut[payload] = pooled
	r.mu.Unlock()

	r.pending = r.pending[1:]
	metrics.RingOccupancy.WithLabelValues(r.name).Set(float64(len(r.pending)))
	return oldest.Frame, payload, nil
}

// Recycle returns a payload buffer produced by PopOldestRead. Recycling a
// payload twice is a no-op.
func (r *StagingRing) Recycle(payload *images.Image) {
	if payload == nil {
		return
	}
	r.mu.Lock()
	pooled, ok := r.checkedOut[payload]
	delete(r.checkedOut, payload)
	r.mu.Unlock()

	if ok {
		r.payloads.Put(pooled)
	}
	payload.Data = nil
}

// Release frees the staging buffers. Pending reads are dropped.
func (r *StagingRing) Release() {
	if len(r.pending) > 0 {
		r.logger.Warn("releasing staging ring with pending reads", zap.Int("pending", len(r.pending)))
	}
	for _, b := range r.slots {
		b.Release()
	}
	r.pending = nil
	metrics.RingOccupancy.WithLabelValues(r.name).Set(0)
}
