// Package config provides the configuration of a cubeconv conversion run.
//
// The configuration is organized into logical sections:
//   - Dataset: where the cubemaps and the remap description live
//   - Output: where converted frames go and how large they are
//   - Pipeline: frame count, camera, readback ring and write pool depths
//   - Device: software device behaviour
//   - Observability: logging, metrics, tracing
//   - Storage: optional object store mirrors of the output tree
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Dataset.Root = "/data/cubemaps"
//	cfg.Dataset.RemapTable = "/data/remap.bin"
//	cfg.Output.Root = "/data/out"
//	cfg.Pipeline.NumFrames = 100
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

const (
	// DefaultRingCapacity is the number of staging buffers per output stream
	DefaultRingCapacity = 2
	// DefaultWriteCapacity is the number of write tasks allowed in flight
	DefaultWriteCapacity = 8
	// MaxCameraIndex is the largest camera index the two-digit path layout can hold
	MaxCameraIndex = 99
)

// Config is the complete configuration of one conversion run.
type Config struct {
	// Dataset describes the input cubemap dataset
	Dataset DatasetConfig `yaml:"dataset" json:"dataset" mapstructure:"dataset"`

	// Output describes the converted dataset
	Output OutputConfig `yaml:"output" json:"output" mapstructure:"output"`

	// Pipeline controls the streaming pipeline
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" mapstructure:"pipeline"`

	// Device controls the software device
	Device DeviceConfig `yaml:"device" json:"device" mapstructure:"device"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Storage mirrors written files to object stores
	Storage StorageConfig `yaml:"storage" json:"storage" mapstructure:"storage"`
}

// DatasetConfig locates the input dataset.
type DatasetConfig struct {
	// Root contains image/cameraNN and depth/cameraNN face folders
	Root string `yaml:"root" json:"root" mapstructure:"root"`
	// RemapTable is a precomputed direction table (raw float32, optionally compressed)
	RemapTable string `yaml:"remap_table" json:"remap_table" mapstructure:"remap_table"`
	// Intrinsics is a TOML camera description used when no remap table is given
	Intrinsics string `yaml:"intrinsics" json:"intrinsics" mapstructure:"intrinsics"`
}

// OutputConfig describes the converted dataset.
type OutputConfig struct {
	// Root receives image/cameraNN and range/cameraNN folders
	Root string `yaml:"root" json:"root" mapstructure:"root"`
	// Width of the output images in pixels
	Width int `yaml:"width" json:"width" mapstructure:"width"`
	// Height of the output images in pixels
	Height int `yaml:"height" json:"height" mapstructure:"height"`
	// CopySideFiles copies *.csv files from the dataset root (except intrinsics.csv)
	CopySideFiles bool `yaml:"copy_side_files" json:"copy_side_files" mapstructure:"copy_side_files"`
	// Report writes report_cameraNN.json into the output root
	Report bool `yaml:"report" json:"report" mapstructure:"report"`
}

// PipelineConfig controls the streaming pipeline.
type PipelineConfig struct {
	// NumFrames is the number of frames to convert, starting at 0
	NumFrames int `yaml:"num_frames" json:"num_frames" mapstructure:"num_frames"`
	// CameraIndex selects the camera folder
	CameraIndex int `yaml:"camera_index" json:"camera_index" mapstructure:"camera_index"`
	// RingCapacity is the number of staging buffers per output stream
	RingCapacity int `yaml:"ring_capacity" json:"ring_capacity" mapstructure:"ring_capacity"`
	// WriteCapacity is the maximum number of outstanding write tasks
	WriteCapacity int `yaml:"write_capacity" json:"write_capacity" mapstructure:"write_capacity"`
	// SummaryInterval logs stage timings every N frames (0 disables)
	SummaryInterval int `yaml:"summary_interval" json:"summary_interval" mapstructure:"summary_interval"`
}

// DeviceConfig controls the software device.
type DeviceConfig struct {
	// Latency delays every device command, forcing readbacks to block
	Latency time.Duration `yaml:"latency" json:"latency" mapstructure:"latency"`
	// QueueDepth bounds the number of submitted but unexecuted commands
	QueueDepth int `yaml:"queue_depth" json:"queue_depth" mapstructure:"queue_depth"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogFormat specifies log output format (json, console)
	LogFormat string `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing exports spans to stderr
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate is the fraction of traces to sample (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// StorageConfig mirrors written files to object stores.
type StorageConfig struct {
	// S3Bucket enables the S3 mirror
	S3Bucket string `yaml:"s3_bucket" json:"s3_bucket" mapstructure:"s3_bucket"`
	// S3Prefix is prepended to object keys
	S3Prefix string `yaml:"s3_prefix" json:"s3_prefix" mapstructure:"s3_prefix"`
	// S3Region overrides the region from the AWS environment
	S3Region string `yaml:"s3_region" json:"s3_region" mapstructure:"s3_region"`
	// GCSBucket enables the Google Cloud Storage mirror
	GCSBucket string `yaml:"gcs_bucket" json:"gcs_bucket" mapstructure:"gcs_bucket"`
	// GCSPrefix is prepended to object names
	GCSPrefix string `yaml:"gcs_prefix" json:"gcs_prefix" mapstructure:"gcs_prefix"`
	// CredentialsFile is a GCP service account file
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// MirrorOnly skips the local output tree and writes to the mirrors alone
	MirrorOnly bool `yaml:"mirror_only" json:"mirror_only" mapstructure:"mirror_only"`
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Width:  640,
			Height: 480,
			Report: true,
		},
		Pipeline: PipelineConfig{
			RingCapacity:    DefaultRingCapacity,
			WriteCapacity:   DefaultWriteCapacity,
			SummaryInterval: 100,
		},
		Device: DeviceConfig{
			QueueDepth: 16,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "console",
			TracingSampleRate: 1.0,
		},
	}
}

// HasMirror reports whether any object store mirror is configured.
func (s StorageConfig) HasMirror() bool {
	return s.S3Bucket != "" || s.GCSBucket != ""
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Dataset.Root == "" {
		return invalid("dataset.root", c.Dataset.Root, "dataset root is required")
	}
	if c.Dataset.RemapTable == "" && c.Dataset.Intrinsics == "" {
		return invalid("dataset.remap_table", "", "a remap table or a camera intrinsics file is required")
	}
	if c.Output.Root == "" && !c.Storage.MirrorOnly {
		return invalid("output.root", c.Output.Root, "output root is required")
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return invalid("output.width", c.Output.Width, "output dimensions must be positive").
			WithDetail("height", c.Output.Height)
	}
	if c.Pipeline.NumFrames < 0 {
		return invalid("pipeline.num_frames", c.Pipeline.NumFrames, "frame count cannot be negative")
	}
	if c.Pipeline.CameraIndex < 0 || c.Pipeline.CameraIndex > MaxCameraIndex {
		return invalid("pipeline.camera_index", c.Pipeline.CameraIndex, "camera index must be in [0, 99]")
	}
	if c.Pipeline.RingCapacity <= 0 {
		return invalid("pipeline.ring_capacity", c.Pipeline.RingCapacity, "ring capacity must be positive")
	}
	if c.Pipeline.WriteCapacity <= 0 {
		return invalid("pipeline.write_capacity", c.Pipeline.WriteCapacity, "write capacity must be positive")
	}
	if c.Pipeline.SummaryInterval < 0 {
		return invalid("pipeline.summary_interval", c.Pipeline.SummaryInterval, "summary interval cannot be negative")
	}
	if c.Device.Latency < 0 {
		return invalid("device.latency", c.Device.Latency, "device latency cannot be negative")
	}
	if c.Device.QueueDepth <= 0 {
		return invalid("device.queue_depth", c.Device.QueueDepth, "device queue depth must be positive")
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return invalid("observability.log_format", c.Observability.LogFormat, "log format must be json or console")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return invalid("observability.tracing_sample_rate", c.Observability.TracingSampleRate, "sample rate must be in [0, 1]")
	}
	if c.Storage.MirrorOnly && !c.Storage.HasMirror() {
		return invalid("storage.mirror_only", true, "mirror_only requires an s3 or gcs bucket")
	}
	return nil
}

func invalid(field string, value interface{}, message string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, message).
		WithDetail("field", field).
		WithDetail("value", value)
}
