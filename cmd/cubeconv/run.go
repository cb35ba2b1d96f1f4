package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/internal/pipeline"
	"github.com/ajitpratap0/cubeconv/pkg/config"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/logger"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
	"github.com/ajitpratap0/cubeconv/pkg/observability"
	"github.com/ajitpratap0/cubeconv/pkg/remap"
)

func newRunCommand() *cobra.Command {
	var configFile string
	var allCameras bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert a cubemap dataset",
		Long: `Convert the frames of one camera, or of every camera described by the
intrinsics file, into camera-native image and inverse range PNGs.

Settings come from the YAML file given with --config, then from
CUBECONV_ environment variables, then from flags.

Example:
  cubeconv run --dataset /data/town01 --intrinsics cameras.toml --output /data/out --frames 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), cfg, allCameras)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML run configuration")
	cmd.Flags().BoolVar(&allCameras, "all-cameras", false, "Convert every camera of the intrinsics file in turn")
	addRunFlags(cmd.Flags())
	return cmd
}

func runConvert(ctx context.Context, cfg *config.Config, allCameras bool) error {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	}); err != nil {
		return err
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    "cubeconv",
		ServiceVersion: version,
		SamplingRate:   cfg.Observability.TracingSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		metricsCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, addr, log); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	cameras, err := camerasToConvert(cfg, allCameras)
	if err != nil {
		log.Error("conversion failed", logger.ErrorFields(err)...)
		return err
	}

	for _, camera := range cameras {
		run := *cfg
		run.Pipeline.CameraIndex = camera

		report, err := pipeline.NewConverter(&run, log).Run(ctx)
		if err != nil {
			log.Error("conversion failed", append(logger.ErrorFields(err), zap.Int("camera", camera))...)
			return err
		}
		log.Info("camera converted",
			zap.Int("camera", camera),
			zap.String("run_id", report.RunID),
			zap.Uint64("written", report.Written),
			zap.Bool("stopped", report.Stopped),
			zap.Float64("duration_seconds", report.DurationSeconds))
		if report.Stopped {
			break
		}
	}
	return nil
}

// camerasToConvert returns the configured camera, or every camera of the
// intrinsics file.
func camerasToConvert(cfg *config.Config, all bool) ([]int, error) {
	if !all {
		return []int{cfg.Pipeline.CameraIndex}, nil
	}
	if cfg.Dataset.Intrinsics == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "--all-cameras needs an intrinsics file")
	}
	if cfg.Dataset.RemapTable != "" {
		return nil, errors.New(errors.ErrorTypeConfig, "--all-cameras cannot share one remap table between cameras")
	}
	in, err := remap.LoadIntrinsics(cfg.Dataset.Intrinsics)
	if err != nil {
		return nil, err
	}
	cameras := make([]int, len(in.Cameras))
	for i := range cameras {
		cameras[i] = i
	}
	return cameras, nil
}
