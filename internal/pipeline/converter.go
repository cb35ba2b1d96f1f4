// Package pipeline implements the streaming conversion engine of cubeconv:
// the staging rings that hide device readback latency, the bounded write
// scheduler, and the driver that keeps frame indices correlated across
// them.
//
// # Overview
//
// Frames flow one way:
//
//	FaceLoader -> FrameRenderer -> StagingRing (per stream) -> WriteScheduler -> ImageWriter
//
// The driver goroutine owns every device-facing step. Only write tasks run
// concurrently, and at most WriteCapacity of them are unfinished at once.
//
// # Basic Usage
//
//	conv := pipeline.NewConverter(cfg, logger)
//	report, err := conv.Run(ctx)
//	if err != nil {
//		return err
//	}
//	logger.Info("converted", zap.Uint64("frames", report.Written))
//
// Cancelling ctx stops after the current frame; frames already in flight
// are still written.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/internal/gpu"
	"github.com/ajitpratap0/cubeconv/internal/render"
	"github.com/ajitpratap0/cubeconv/pkg/config"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/logger"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
	"github.com/ajitpratap0/cubeconv/pkg/observability"
	"github.com/ajitpratap0/cubeconv/pkg/pool"
	"github.com/ajitpratap0/cubeconv/pkg/remap"
	"github.com/ajitpratap0/cubeconv/pkg/storage"
)

// Converter runs a full conversion of one camera from configuration.
type Converter struct {
	cfg    *config.Config
	logger *zap.Logger

	// Store overrides the store built from cfg.Storage when set
	Store storage.Store
}

// NewConverter creates a converter for cfg.
func NewConverter(cfg *config.Config, logger *zap.Logger) *Converter {
	return &Converter{cfg: cfg, logger: logger}
}

// Run converts the configured frames and returns the run report. A stop
// request still returns a report, with Stopped set, and no error.
func (c *Converter) Run(ctx context.Context) (*Report, error) {
	cfg := c.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.ContextWithRun(ctx, runID, cfg.Pipeline.CameraIndex)
	log := logger.FromContext(ctx, c.logger)

	ctx, span := observability.StartSpan(ctx, "convert",
		attribute.String("run_id", runID),
		attribute.Int("camera", cfg.Pipeline.CameraIndex))
	defer span.End()

	numFrames, err := c.frameCount()
	if err != nil {
		return nil, err
	}

	table, err := c.loadTable(log)
	if err != nil {
		return nil, err
	}

	// A stop request only ends the frame loop. Setup and everything written
	// after the loop use work.
	work := context.WithoutCancel(ctx)

	store := c.Store
	if store == nil {
		store, err = storage.New(work, cfg.Storage, cfg.Output.Root, log)
		if err != nil {
			return nil, err
		}
		defer closeStore(store, log)
	}

	layout := Layout{Camera: cfg.Pipeline.CameraIndex}
	if err := store.Prepare(work, layout.Dirs()); err != nil {
		return nil, err
	}

	device := gpu.NewDevice(gpu.Options{
		QueueDepth: cfg.Device.QueueDepth,
		Latency:    cfg.Device.Latency,
		Logger:     log,
	})
	defer func() { _ = device.Close() }()

	renderer, err := render.NewRenderer(device, table, log)
	if err != nil {
		return nil, err
	}
	defer renderer.Release()

	colorShape := renderer.Color().Shape()
	rangeShape := renderer.InvRange().Shape()
	payloads := pool.NewBufferPool(colorShape.Size(), rangeShape.Size())

	imageRing, err := NewStagingRing(device, metrics.StreamImage, cfg.Pipeline.RingCapacity, colorShape, payloads, log)
	if err != nil {
		return nil, err
	}
	defer imageRing.Release()
	rangeRing, err := NewStagingRing(device, metrics.StreamRange, cfg.Pipeline.RingCapacity, rangeShape, payloads, log)
	if err != nil {
		return nil, err
	}
	defer rangeRing.Release()

	timer := metrics.NewStageTimer(metrics.DefaultWindow)
	driver, err := NewDriver(DriverConfig{
		Loader:   DatasetLoader{Root: cfg.Dataset.Root, Camera: cfg.Pipeline.CameraIndex},
		Renderer: renderer,
		Writer:   NewStoreWriter(store),
		Streams: []*Stream{
			{Name: metrics.StreamImage, Ring: imageRing, Source: renderer.Color(), Flip: true},
			{Name: metrics.StreamRange, Ring: rangeRing, Source: renderer.InvRange(), Flip: true},
		},
		Layout:          layout,
		WriteCapacity:   cfg.Pipeline.WriteCapacity,
		Timer:           timer,
		Logger:          log,
		SummaryInterval: cfg.Pipeline.SummaryInterval,
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := driver.Run(ctx, numFrames)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:           runID,
		Camera:          cfg.Pipeline.CameraIndex,
		DatasetRoot:     cfg.Dataset.Root,
		Store:           store.Name(),
		Width:           table.Width,
		Height:          table.Height,
		RingCapacity:    cfg.Pipeline.RingCapacity,
		WriteCapacity:   cfg.Pipeline.WriteCapacity,
		FramesRequested: numFrames,
		Frames:          result.Frames,
		Written:         result.Written,
		Stopped:         result.Stopped,
		State:           result.State.String(),
		StartedAt:       started.UTC(),
		DurationSeconds: result.Duration.Seconds(),
		StageAveragesMS: NewStageAverages(timer),
	}

	if cfg.Output.CopySideFiles {
		keys, err := CopySideFiles(work, store, cfg.Dataset.Root, cfg.Dataset.Intrinsics)
		if err != nil {
			return report, err
		}
		report.SideFiles = keys
		log.Info("copied side files", zap.Strings("files", keys))
	}

	if sample, err := metrics.SampleProcess(work); err == nil {
		report.Process = sample
	} else {
		log.Debug("process sample incomplete", zap.Error(err))
	}

	if cfg.Output.Report {
		if err := report.Save(work, store, layout.ReportKey()); err != nil {
			return report, err
		}
	}
	return report, nil
}

// frameCount resolves the number of frames, counting pose rows when the
// configuration leaves it at zero.
func (c *Converter) frameCount() (uint64, error) {
	if n := c.cfg.Pipeline.NumFrames; n > 0 {
		return uint64(n), nil
	}
	n, err := CountFrames(c.cfg.Dataset.Root)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "num_frames is 0 and the pose file cannot be counted")
	}
	c.logger.Info("frame count taken from pose file", zap.Uint64("frames", n))
	return n, nil
}

// loadTable reads the configured remap table, or builds it from the camera
// description. A built table sets the output size.
func (c *Converter) loadTable(log *zap.Logger) (*images.Image, error) {
	cfg := c.cfg
	if cfg.Dataset.RemapTable != "" {
		start := time.Now()
		table, err := remap.LoadTable(cfg.Dataset.RemapTable, cfg.Output.Width, cfg.Output.Height)
		if err != nil {
			return nil, err
		}
		log.Info("remap table loaded",
			zap.String("path", cfg.Dataset.RemapTable),
			zap.Int("width", table.Width),
			zap.Int("height", table.Height),
			zap.Duration("duration", time.Since(start)))
		return table, nil
	}

	intrinsics, err := remap.LoadIntrinsics(cfg.Dataset.Intrinsics)
	if err != nil {
		return nil, err
	}
	camera, err := intrinsics.Camera(cfg.Pipeline.CameraIndex)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := remap.BuildCameraTable(camera)
	if err != nil {
		return nil, err
	}
	log.Info("remap table built",
		zap.String("model", camera.Model),
		zap.Int("width", table.Width),
		zap.Int("height", table.Height),
		zap.Duration("duration", time.Since(start)))
	return table, nil
}

// closeStore closes a store the converter opened. A failed close is logged
// and does not change the outcome of the run.
func closeStore(store storage.Store, log *zap.Logger) {
	if err := store.Close(); err != nil {
		log.Warn("failed to close output store",
			append(logger.ErrorFields(err), zap.String("store", store.Name()))...)
	}
}
