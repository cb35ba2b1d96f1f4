package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/logger"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
	"github.com/ajitpratap0/cubeconv/pkg/observability"
)

// Stream is one output of the renderer read back through its own ring.
type Stream struct {
	// Name is the stream folder, "image" or "range"
	Name string
	// Ring holds the stream's in-flight readbacks
	Ring *StagingRing
	// Source is the device texture the renderer draws the stream into
	Source *gpu.Texture
	// Flip stores rows top-down when writing a bottom-up readback
	Flip bool
}

// DriverConfig wires a Driver.
type DriverConfig struct {
	Loader   FaceLoader
	Renderer FrameRenderer
	Writer   ImageWriter
	Streams  []*Stream
	Layout   Layout
	// WriteCapacity bounds the write tasks in flight
	WriteCapacity int
	Timer         *metrics.StageTimer
	Logger        *zap.Logger
	// SummaryInterval logs stage timings every N frames, 0 disables
	SummaryInterval int
}

// Result describes a finished run.
type Result struct {
	// Frames is the number of frames that entered the pipeline
	Frames uint64
	// Written is the number of write tasks submitted
	Written uint64
	// Evicted lists submitted frames in submission order
	Evicted []FrameIndex
	// Stopped is set when a stop request ended streaming early
	Stopped bool
	// State is the final state of the run
	State State
	// Duration is the wall time of the run
	Duration time.Duration
}

// Driver moves frames through load, render, readback and write while
// keeping every ring's capacity of frames in flight between device
// submission and host readback.
//
// Per frame i the driver loads and renders the frame, evicts the oldest
// read from every full ring, queues frame i's read in every ring and, when
// something was evicted, submits the evicted frame's write task. All rings
// advance together, so the evicted frame always equals the head of the
// correlation queue. After the last frame the remaining reads are drained
// in order and the scheduler is flushed.
//
// Cancelling the context passed to Run ends streaming before the next
// frame; draining and flushing still run so no accepted frame is lost.
type Driver struct {
	loader    FaceLoader
	renderer  FrameRenderer
	writer    ImageWriter
	streams   []*Stream
	layout    Layout
	scheduler *WriteScheduler
	queue     *CorrelationQueue
	timer     *metrics.StageTimer
	logger    *zap.Logger
	summary   int

	state  atomic.Int32
	result Result
}

// NewDriver validates cfg and creates a driver. Every ring must share one
// capacity.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Loader == nil || cfg.Renderer == nil || cfg.Writer == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "driver is missing a collaborator")
	}
	if len(cfg.Streams) == 0 {
		return nil, errors.New(errors.ErrorTypeInternal, "driver needs at least one stream")
	}
	capacity := cfg.Streams[0].Ring.Capacity()
	for _, s := range cfg.Streams[1:] {
		if s.Ring.Capacity() != capacity {
			return nil, errors.New(errors.ErrorTypeConfig, "rings must share one capacity").
				WithDetail("stream", s.Name).
				WithDetail("capacity", s.Ring.Capacity()).
				WithDetail("expected", capacity)
		}
	}
	if cfg.Timer == nil {
		cfg.Timer = metrics.NewStageTimer(metrics.DefaultWindow)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	d := &Driver{
		loader:    cfg.Loader,
		renderer:  cfg.Renderer,
		writer:    cfg.Writer,
		streams:   cfg.Streams,
		layout:    cfg.Layout,
		queue:     NewCorrelationQueue(capacity),
		timer:     cfg.Timer,
		logger:    cfg.Logger.With(zap.String("component", "driver")),
		summary:   cfg.SummaryInterval,
	}
	scheduler, err := NewWriteScheduler(cfg.WriteCapacity, d.writeTask, cfg.Logger)
	if err != nil {
		return nil, err
	}
	d.scheduler = scheduler
	d.setState(StateInitializing)
	return d, nil
}

// Scheduler returns the driver's write scheduler.
func (d *Driver) Scheduler() *WriteScheduler {
	return d.scheduler
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

// Run converts frames 0 through numFrames-1. A stop request is reported
// through Result.Stopped, not as an error.
func (d *Driver) Run(ctx context.Context, numFrames uint64) (Result, error) {
	start := time.Now()
	d.result = Result{Evicted: make([]FrameIndex, 0, numFrames)}

	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.Int64("frames", int64(numFrames)), //nolint:gosec // frame counts fit in int64
		attribute.Int("ring_capacity", d.streams[0].Ring.Capacity()),
		attribute.Int("write_capacity", d.scheduler.Capacity()))
	defer span.End()

	// Device waits and accepted writes must complete even after a stop
	// request, so only the frame loop observes cancellation.
	work := context.WithoutCancel(ctx)

	d.setState(StateStreaming)
	d.logger.Info("streaming frames",
		zap.Uint64("frames", numFrames),
		zap.Int("streams", len(d.streams)),
		zap.Int("ring_capacity", d.streams[0].Ring.Capacity()),
		zap.Int("write_capacity", d.scheduler.Capacity()))

	if err := d.stream(ctx, work, numFrames); err != nil {
		return d.fail(err, start)
	}

	d.setState(StateDraining)
	if err := d.drain(work); err != nil {
		return d.fail(err, start)
	}

	if err := d.scheduler.Flush(); err != nil {
		return d.fail(err, start)
	}

	d.setState(StateComplete)
	d.result.State = StateComplete
	d.result.Duration = time.Since(start)
	d.logger.Info("pipeline complete",
		zap.Uint64("frames", d.result.Frames),
		zap.Uint64("written", d.result.Written),
		zap.Bool("stopped", d.result.Stopped),
		zap.Duration("duration", d.result.Duration),
		zap.String("stages", d.timer.Summary()))
	return d.result, nil
}

func (d *Driver) stream(ctx, work context.Context, numFrames uint64) error {
	for i := FrameIndex(0); i < numFrames; i++ {
		if ctx.Err() != nil {
			d.result.Stopped = true
			d.logger.Info("stop requested, draining in-flight frames",
				zap.Uint64("next_frame", i),
				zap.Int("in_flight", d.queue.Len()))
			return nil
		}
		if err := d.scheduler.Err(); err != nil {
			return err
		}
		if err := d.step(work, i); err != nil {
			return err
		}
		d.result.Frames++

		if d.summary > 0 && (i+1)%uint64(d.summary) == 0 {
			d.logger.Info("progress",
				zap.Uint64("frame", i),
				zap.Uint64("written", d.result.Written),
				zap.Int("writes_outstanding", d.scheduler.Outstanding()),
				zap.String("stages", d.timer.Summary()))
		}
	}
	return nil
}

// step runs one frame through the pipeline.
func (d *Driver) step(ctx context.Context, frame FrameIndex) error {
	ctx, span := observability.StartSpan(ctx, "pipeline.frame",
		attribute.Int64("frame", int64(frame))) //nolint:gosec // frame indices fit in int64
	defer span.End()
	log := logger.FromContext(logger.ContextWithFrame(ctx, frame), d.logger)

	stop := d.timer.Start(metrics.StageLoad)
	color, depth, err := d.loader.LoadFaces(ctx, frame)
	stop()
	if err != nil {
		return err
	}

	stop = d.timer.Start(metrics.StageUnpack)
	err = d.renderer.Upload(color, depth)
	stop()
	if err != nil {
		return err
	}

	stop = d.timer.Start(metrics.StageRender)
	_, err = d.renderer.Render(frame)
	stop()
	if err != nil {
		return err
	}

	stop = d.timer.Start(metrics.StagePack)
	evicted, payloads, err := d.evictIfFull(ctx)
	if err == nil {
		err = d.queueReads(frame)
	}
	stop()
	if err != nil {
		d.recycle(payloads)
		return err
	}
	if err := d.queue.Push(frame); err != nil {
		d.recycle(payloads)
		return err
	}

	if payloads == nil {
		log.Debug("pipeline filling", zap.Int("in_flight", d.queue.Len()))
		return nil
	}
	return d.submit(ctx, evicted, payloads)
}

// evictIfFull pops the oldest read from every ring when the rings are
// full. It returns nil payloads while the pipeline is still filling.
func (d *Driver) evictIfFull(ctx context.Context) (FrameIndex, []*images.Image, error) {
	full := d.streams[0].Ring.IsFull()
	for _, s := range d.streams[1:] {
		if s.Ring.IsFull() != full {
			return 0, nil, errors.New(errors.ErrorTypeInvariant, "staging rings out of step").
				WithDetail("stream", s.Name)
		}
	}
	if !full {
		return 0, nil, nil
	}
	return d.popAll(ctx)
}

// popAll evicts the oldest read of every ring and checks that they all
// hold the same frame.
func (d *Driver) popAll(ctx context.Context) (FrameIndex, []*images.Image, error) {
	payloads := make([]*images.Image, len(d.streams))
	var frame FrameIndex
	for i, s := range d.streams {
		f, payload, err := s.Ring.PopOldestRead(ctx)
		if err != nil {
			d.recycle(payloads)
			return 0, nil, err
		}
		payloads[i] = payload
		if i == 0 {
			frame = f
		} else if f != frame {
			d.recycle(payloads)
			return 0, nil, errors.New(errors.ErrorTypeInvariant, "staging rings evicted different frames").
				WithDetail("stream", s.Name).
				WithDetail("frame", f).
				WithDetail("expected", frame)
		}
	}
	return frame, payloads, nil
}

func (d *Driver) queueReads(frame FrameIndex) error {
	for _, s := range d.streams {
		if err := s.Ring.QueueReadFromSource(frame, s.Source); err != nil {
			return err
		}
	}
	return nil
}

// submit resolves the head of the correlation queue against the evicted
// frame and pushes its write task.
func (d *Driver) submit(ctx context.Context, evicted FrameIndex, payloads []*images.Image) error {
	head, err := d.queue.Pop()
	if err != nil {
		d.recycle(payloads)
		return err
	}
	if head != evicted {
		d.recycle(payloads)
		return errors.New(errors.ErrorTypeInvariant, "evicted frame does not match correlation queue").
			WithDetail("evicted", evicted).
			WithDetail("expected", head)
	}

	task := &WriteTask{Frame: head, Outputs: make([]WriteOutput, len(d.streams))}
	for i, s := range d.streams {
		task.Outputs[i] = WriteOutput{
			Stream: s.Name,
			Key:    d.layout.Key(s.Name, head),
			Image:  payloads[i],
			Flip:   s.Flip,
		}
	}
	if err := d.scheduler.Push(ctx, task); err != nil {
		d.recycle(payloads)
		return err
	}
	d.result.Written++
	d.result.Evicted = append(d.result.Evicted, head)
	return nil
}

// drain resolves every frame still in the correlation queue. Fewer than
// capacity frames may remain when streaming stopped early.
func (d *Driver) drain(ctx context.Context) error {
	if n := d.queue.Len(); n > 0 {
		d.logger.Debug("draining", zap.Int("frames", n))
	}
	for d.queue.Len() > 0 {
		stop := d.timer.Start(metrics.StagePack)
		frame, payloads, err := d.popAll(ctx)
		stop()
		if err != nil {
			return err
		}
		if err := d.submit(ctx, frame, payloads); err != nil {
			return err
		}
	}
	for _, s := range d.streams {
		if s.Ring.HasPending() {
			return errors.New(errors.ErrorTypeInvariant, "staging ring still pending after drain").
				WithDetail("stream", s.Name).
				WithDetail("pending", s.Ring.Len())
		}
	}
	return nil
}

// fail flushes writes already started and reports err. Frames still in
// the rings are not written.
func (d *Driver) fail(err error, start time.Time) (Result, error) {
	d.setState(StateFailed)
	if ferr := d.scheduler.Flush(); ferr != nil && ferr != err { //nolint:errorlint // same error value
		d.logger.Error("write failures while aborting", zap.Error(ferr))
	}
	d.result.State = StateFailed
	d.result.Duration = time.Since(start)
	d.logger.Error("pipeline failed", append(logger.ErrorFields(err),
		zap.Uint64("frames", d.result.Frames),
		zap.Uint64("written", d.result.Written))...)
	return d.result, err
}

// writeTask is the WriteFunc of the driver's scheduler. It writes every
// output and recycles the payloads.
func (d *Driver) writeTask(ctx context.Context, task *WriteTask) error {
	stop := d.timer.Start(metrics.StageWrite)
	defer stop()

	defer func() {
		for i, out := range task.Outputs {
			d.streams[i].Ring.Recycle(out.Image)
		}
	}()
	for _, out := range task.Outputs {
		if err := d.writer.WriteImage(ctx, out.Key, out.Image, out.Flip); err != nil {
			return err
		}
		metrics.FramesWritten.WithLabelValues(out.Stream).Inc()
	}
	return nil
}

func (d *Driver) recycle(payloads []*images.Image) {
	for i, p := range payloads {
		if p != nil {
			d.streams[i].Ring.Recycle(p)
		}
	}
}
