package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/cubeconv/pkg/config"
)

// envPrefix namespaces environment overrides, e.g. CUBECONV_PIPELINE_RING_CAPACITY.
const envPrefix = "CUBECONV"

// flagKeys maps run flags to configuration keys.
var flagKeys = map[string]string{
	"dataset":           "dataset.root",
	"remap-table":       "dataset.remap_table",
	"intrinsics":        "dataset.intrinsics",
	"output":            "output.root",
	"width":             "output.width",
	"height":            "output.height",
	"copy-side-files":   "output.copy_side_files",
	"report":            "output.report",
	"frames":            "pipeline.num_frames",
	"camera":            "pipeline.camera_index",
	"ring-capacity":     "pipeline.ring_capacity",
	"write-capacity":    "pipeline.write_capacity",
	"summary-interval":  "pipeline.summary_interval",
	"device-latency":    "device.latency",
	"queue-depth":       "device.queue_depth",
	"log-level":         "observability.log_level",
	"log-format":        "observability.log_format",
	"metrics-addr":      "observability.metrics_addr",
	"tracing":           "observability.enable_tracing",
	"trace-sample-rate": "observability.tracing_sample_rate",
	"s3-bucket":         "storage.s3_bucket",
	"s3-prefix":         "storage.s3_prefix",
	"s3-region":         "storage.s3_region",
	"gcs-bucket":        "storage.gcs_bucket",
	"gcs-prefix":        "storage.gcs_prefix",
	"credentials-file":  "storage.credentials_file",
	"mirror-only":       "storage.mirror_only",
}

func addRunFlags(flags *pflag.FlagSet) {
	d := config.NewConfig()

	flags.String("dataset", "", "Dataset root holding image/ and depth/ cubemap folders")
	flags.String("remap-table", "", "Precomputed remap table (.bin, .bin.zst, .bin.lz4)")
	flags.String("intrinsics", "", "TOML camera description, used when no remap table is given")
	flags.String("output", "", "Output root receiving image/ and range/ folders")
	flags.Int("width", d.Output.Width, "Output width in pixels")
	flags.Int("height", d.Output.Height, "Output height in pixels")
	flags.Bool("copy-side-files", d.Output.CopySideFiles, "Copy the dataset's csv files and intrinsics into the output")
	flags.Bool("report", d.Output.Report, "Write report_cameraNN.json into the output")
	flags.Int("frames", d.Pipeline.NumFrames, "Number of frames to convert, 0 counts the ground truth pose rows")
	flags.Int("camera", d.Pipeline.CameraIndex, "Camera index")
	flags.Int("ring-capacity", d.Pipeline.RingCapacity, "Staging buffers per output stream. Higher values hide more readback latency")
	flags.Int("write-capacity", d.Pipeline.WriteCapacity, "Maximum write tasks in flight. Bounds memory held by pending writes")
	flags.Int("summary-interval", d.Pipeline.SummaryInterval, "Log stage timings every N frames (0 disables)")
	flags.Duration("device-latency", d.Device.Latency, "Artificial latency of every device command (e.g. 2ms)")
	flags.Int("queue-depth", d.Device.QueueDepth, "Maximum device commands submitted ahead of execution")
	flags.String("log-level", d.Observability.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.Observability.LogFormat, "Log format (json, console)")
	flags.String("metrics-addr", d.Observability.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("tracing", d.Observability.EnableTracing, "Export trace spans to stderr")
	flags.Float64("trace-sample-rate", d.Observability.TracingSampleRate, "Fraction of traces to sample")
	flags.String("s3-bucket", "", "Mirror output to this S3 bucket")
	flags.String("s3-prefix", "", "Key prefix inside the S3 bucket")
	flags.String("s3-region", "", "AWS region override")
	flags.String("gcs-bucket", "", "Mirror output to this GCS bucket")
	flags.String("gcs-prefix", "", "Object prefix inside the GCS bucket")
	flags.String("credentials-file", "", "GCP service account file")
	flags.Bool("mirror-only", false, "Write to the object store mirrors only")
}

// newViper binds the run flags and CUBECONV_ environment variables to
// configuration keys.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// applyOverrides copies every key set on the command line or in the
// environment into cfg. Keys left unset keep the file or default value.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	str("dataset.root", &cfg.Dataset.Root)
	str("dataset.remap_table", &cfg.Dataset.RemapTable)
	str("dataset.intrinsics", &cfg.Dataset.Intrinsics)

	str("output.root", &cfg.Output.Root)
	num("output.width", &cfg.Output.Width)
	num("output.height", &cfg.Output.Height)
	flag("output.copy_side_files", &cfg.Output.CopySideFiles)
	flag("output.report", &cfg.Output.Report)

	num("pipeline.num_frames", &cfg.Pipeline.NumFrames)
	num("pipeline.camera_index", &cfg.Pipeline.CameraIndex)
	num("pipeline.ring_capacity", &cfg.Pipeline.RingCapacity)
	num("pipeline.write_capacity", &cfg.Pipeline.WriteCapacity)
	num("pipeline.summary_interval", &cfg.Pipeline.SummaryInterval)

	dur("device.latency", &cfg.Device.Latency)
	num("device.queue_depth", &cfg.Device.QueueDepth)

	str("observability.log_level", &cfg.Observability.LogLevel)
	str("observability.log_format", &cfg.Observability.LogFormat)
	str("observability.metrics_addr", &cfg.Observability.MetricsAddr)
	flag("observability.enable_tracing", &cfg.Observability.EnableTracing)
	if v.IsSet("observability.tracing_sample_rate") {
		cfg.Observability.TracingSampleRate = v.GetFloat64("observability.tracing_sample_rate")
	}

	str("storage.s3_bucket", &cfg.Storage.S3Bucket)
	str("storage.s3_prefix", &cfg.Storage.S3Prefix)
	str("storage.s3_region", &cfg.Storage.S3Region)
	str("storage.gcs_bucket", &cfg.Storage.GCSBucket)
	str("storage.gcs_prefix", &cfg.Storage.GCSPrefix)
	str("storage.credentials_file", &cfg.Storage.CredentialsFile)
	flag("storage.mirror_only", &cfg.Storage.MirrorOnly)
}

// loadConfig reads path on top of the defaults, or the defaults alone when
// path is empty, then applies flag and environment overrides.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	v, err := newViper(flags)
	if err != nil {
		return nil, err
	}
	applyOverrides(v, cfg)
	return cfg, nil
}
