package gpu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// DefaultQueueDepth is the number of commands that may wait on the
// timeline before Submit blocks.
const DefaultQueueDepth = 16

// Options configures a Device.
type Options struct {
	// QueueDepth bounds the command queue
	QueueDepth int
	// Latency is added before every command executes
	Latency time.Duration
	// Logger receives device diagnostics
	Logger *zap.Logger
}

// Fence is signalled when the command it was returned for has executed.
type Fence struct {
	done chan struct{}
	err  error
}

func newFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

func (f *Fence) signal(err error) {
	f.err = err
	close(f.done)
}

// Done returns a channel closed once the command has executed.
func (f *Fence) Done() <-chan struct{} {
	return f.done
}

// Signalled reports whether the command has executed, without blocking.
func (f *Fence) Signalled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the command has executed and returns its error.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeCanceled, "wait for device fence interrupted")
	}
}

type command struct {
	label string
	run   func() error
	fence *Fence
}

// Device is a software graphics device. See the package documentation.
type Device struct {
	logger  *zap.Logger
	latency time.Duration

	mu       sync.RWMutex
	closed   bool
	commands chan command
	stopped  chan struct{}

	lost atomic.Pointer[errors.Error]

	nextID    atomic.Uint64
	resMu     sync.Mutex
	resources map[uint64]string

	executed atomic.Int64
}

// NewDevice starts a device timeline.
func NewDevice(opts Options) *Device {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	d := &Device{
		logger:    opts.Logger.With(zap.String("component", "gpu")),
		latency:   opts.Latency,
		commands:  make(chan command, opts.QueueDepth),
		stopped:   make(chan struct{}),
		resources: make(map[uint64]string),
	}
	go d.timeline()

	d.logger.Debug("device started",
		zap.Int("queue_depth", opts.QueueDepth),
		zap.Duration("latency", opts.Latency))
	return d
}

func (d *Device) timeline() {
	defer close(d.stopped)

	for cmd := range d.commands {
		if lost := d.lost.Load(); lost != nil {
			cmd.fence.signal(lost)
			continue
		}
		if d.latency > 0 {
			time.Sleep(d.latency)
		}

		err := cmd.run()
		d.executed.Add(1)
		if err != nil {
			lost := errors.Wrap(err, errors.ErrorTypeDevice, "device lost").
				WithDetail("command", cmd.label)
			d.lost.Store(lost)
			d.logger.Error("device command failed", zap.String("command", cmd.label), zap.Error(err))
			cmd.fence.signal(lost)
			continue
		}
		cmd.fence.signal(nil)
	}
}

// Submit queues fn for execution on the device timeline. It blocks while
// the command queue is full. Once a command fails the device is lost and
// every later command fails with the same error.
func (d *Device) Submit(label string, fn func() error) (*Fence, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, errors.New(errors.ErrorTypeDevice, "device is closed").
			WithDetail("command", label)
	}
	if lost := d.lost.Load(); lost != nil {
		return nil, lost
	}

	fence := newFence()
	d.commands <- command{label: label, run: fn, fence: fence}
	return fence, nil
}

// Finish blocks until every command submitted so far has executed.
func (d *Device) Finish(ctx context.Context) error {
	fence, err := d.Submit("finish", func() error { return nil })
	if err != nil {
		return err
	}
	return fence.Wait(ctx)
}

// Err returns the error that lost the device, if any.
func (d *Device) Err() error {
	if lost := d.lost.Load(); lost != nil {
		return lost
	}
	return nil
}

// Executed returns how many commands the timeline has run.
func (d *Device) Executed() int64 {
	return d.executed.Load()
}

// LiveResources returns the labels of resources not yet released.
func (d *Device) LiveResources() []string {
	d.resMu.Lock()
	defer d.resMu.Unlock()

	labels := make([]string, 0, len(d.resources))
	for _, l := range d.resources {
		labels = append(labels, l)
	}
	return labels
}

// Close drains the command queue and stops the timeline. Resources still
// alive are reported as a warning.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.commands)
	d.mu.Unlock()

	<-d.stopped

	if live := d.LiveResources(); len(live) > 0 {
		d.logger.Warn("device closed with live resources", zap.Strings("resources", live))
	}
	d.logger.Debug("device stopped", zap.Int64("commands", d.executed.Load()))
	return nil
}

func (d *Device) track(label string) *Handle {
	id := d.nextID.Add(1)

	d.resMu.Lock()
	d.resources[id] = label
	d.resMu.Unlock()

	return newHandle(id, func() {
		d.resMu.Lock()
		delete(d.resources, id)
		d.resMu.Unlock()
	})
}
