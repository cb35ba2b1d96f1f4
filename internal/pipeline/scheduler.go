package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
)

// WriteOutput is one image of a write task.
type WriteOutput struct {
	Stream string
	Key    string
	Image  *images.Image
	Flip   bool
}

// WriteTask persists every stream's payload of one frame. It is immutable
// once pushed.
type WriteTask struct {
	Frame   FrameIndex
	Outputs []WriteOutput
}

// WriteFunc executes a write task.
type WriteFunc func(ctx context.Context, task *WriteTask) error

type writeHandle struct {
	frame FrameIndex
	done  chan struct{}
	err   error
}

func (h *writeHandle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// WriteScheduler runs write tasks asynchronously with at most
// maxOutstanding unfinished at any time. When the bound is reached, Push
// waits for the oldest submitted task before starting the new one.
//
// A failing task is not retried. The first failure is kept; later Push
// calls refuse new work and return it, and Flush returns it once every
// started task has finished.
//
// Push and Flush are called from the driver goroutine only.
type WriteScheduler struct {
	maxOutstanding int
	write          WriteFunc
	logger         *zap.Logger

	inflight []*writeHandle

	mu       sync.Mutex
	firstErr error
	started  int64
	failed   int64
}

// NewWriteScheduler creates a scheduler running write for every task.
func NewWriteScheduler(maxOutstanding int, write WriteFunc, logger *zap.Logger) (*WriteScheduler, error) {
	if maxOutstanding <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "write capacity must be positive").
			WithDetail("capacity", maxOutstanding)
	}
	return &WriteScheduler{
		maxOutstanding: maxOutstanding,
		write:          write,
		logger:         logger.With(zap.String("component", "write_scheduler")),
		inflight:       make([]*writeHandle, 0, maxOutstanding),
	}, nil
}

// Capacity returns the maximum number of outstanding tasks.
func (s *WriteScheduler) Capacity() int { return s.maxOutstanding }

// Push starts task asynchronously, first waiting for the oldest task when
// maxOutstanding tasks are unfinished. Tasks run with a context that keeps
// ctx's values but not its cancellation, so a stop request never abandons
// a write that was already accepted.
func (s *WriteScheduler) Push(ctx context.Context, task *WriteTask) error {
	if err := s.Err(); err != nil {
		return err
	}

	s.prune()
	if len(s.inflight) >= s.maxOutstanding {
		metrics.BackpressureWaits.Inc()
		oldest := s.inflight[0]
		start := time.Now()
		<-oldest.done
		s.inflight = s.inflight[1:]
		s.logger.Debug("write backpressure",
			zap.Uint64("waited_for", oldest.frame),
			zap.Uint64("frame", task.Frame),
			zap.Duration("wait", time.Since(start)))
		if err := s.Err(); err != nil {
			return err
		}
	}

	h := &writeHandle{frame: task.Frame, done: make(chan struct{})}
	s.inflight = append(s.inflight, h)

	s.mu.Lock()
	s.started++
	s.mu.Unlock()
	metrics.WritesOutstanding.Inc()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(h.done)
		defer metrics.WritesOutstanding.Dec()

		start := time.Now()
		h.err = s.write(taskCtx, task)
		metrics.WriteTaskDuration.Observe(time.Since(start).Seconds())
		if h.err != nil {
			s.fail(task.Frame, h.err)
		}
	}()
	return nil
}

// prune drops finished tasks from the in-flight list, wherever they are.
func (s *WriteScheduler) prune() {
	kept := s.inflight[:0]
	for _, h := range s.inflight {
		if !h.finished() {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(s.inflight); i++ {
		s.inflight[i] = nil
	}
	s.inflight = kept
}

func (s *WriteScheduler) fail(frame FrameIndex, err error) {
	metrics.WriteFailures.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	if s.firstErr == nil {
		s.firstErr = errors.Wrap(err, errors.ErrorTypeOutput, "write task failed").
			WithDetail("frame", frame)
		s.logger.Error("write task failed", zap.Uint64("frame", frame), zap.Error(err))
	}
}

// Outstanding returns the number of unfinished tasks.
func (s *WriteScheduler) Outstanding() int {
	n := 0
	for _, h := range s.inflight {
		if !h.finished() {
			n++
		}
	}
	return n
}

// Flush waits for every started task and returns the first failure.
func (s *WriteScheduler) Flush() error {
	for _, h := range s.inflight {
		<-h.done
	}
	s.inflight = s.inflight[:0]
	return s.Err()
}

// Err returns the first task failure, if any.
func (s *WriteScheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Stats returns how many tasks were started and how many failed.
func (s *WriteScheduler) Stats() (started, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.failed
}
