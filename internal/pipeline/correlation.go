package pipeline

import "github.com/ajitpratap0/cubeconv/pkg/errors"

// CorrelationQueue is the FIFO of frames whose reads are queued in every
// ring. Its head is the frame the next eviction returns from each ring.
type CorrelationQueue struct {
	frames []FrameIndex
	last   FrameIndex
	pushed bool
}

// NewCorrelationQueue creates a queue sized for capacity frames in flight.
func NewCorrelationQueue(capacity int) *CorrelationQueue {
	return &CorrelationQueue{frames: make([]FrameIndex, 0, capacity+1)}
}

// Push appends frame. Frames must be pushed in strictly ascending order.
func (q *CorrelationQueue) Push(frame FrameIndex) error {
	if q.pushed && frame <= q.last {
		return errors.New(errors.ErrorTypeInvariant, "frame pushed out of order").
			WithDetail("frame", frame).
			WithDetail("last", q.last)
	}
	q.frames = append(q.frames, frame)
	q.last, q.pushed = frame, true
	return nil
}

// Pop removes and returns the head.
func (q *CorrelationQueue) Pop() (FrameIndex, error) {
	if len(q.frames) == 0 {
		return 0, errors.New(errors.ErrorTypeInvariant, "pop from an empty correlation queue")
	}
	head := q.frames[0]
	q.frames = q.frames[1:]
	return head, nil
}

// Peek returns the head without removing it.
func (q *CorrelationQueue) Peek() (FrameIndex, bool) {
	if len(q.frames) == 0 {
		return 0, false
	}
	return q.frames[0], true
}

// Len returns the number of unresolved frames.
func (q *CorrelationQueue) Len() int { return len(q.frames) }
