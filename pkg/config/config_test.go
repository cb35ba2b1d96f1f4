package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.Dataset.Root = "/in"
	cfg.Dataset.RemapTable = "/in/remap.bin"
	cfg.Output.Root = "/out"
	cfg.Pipeline.NumFrames = 10
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing dataset root", func(c *Config) { c.Dataset.Root = "" }, "dataset.root"},
		{"missing remap source", func(c *Config) { c.Dataset.RemapTable = "" }, "dataset.remap_table"},
		{"intrinsics instead of table", func(c *Config) {
			c.Dataset.RemapTable = ""
			c.Dataset.Intrinsics = "/in/intrinsics.toml"
		}, ""},
		{"missing output root", func(c *Config) { c.Output.Root = "" }, "output.root"},
		{"mirror only without output root", func(c *Config) {
			c.Output.Root = ""
			c.Storage.MirrorOnly = true
			c.Storage.S3Bucket = "bucket"
		}, ""},
		{"mirror only without bucket", func(c *Config) { c.Storage.MirrorOnly = true }, "storage.mirror_only"},
		{"zero width", func(c *Config) { c.Output.Width = 0 }, "output.width"},
		{"negative frames", func(c *Config) { c.Pipeline.NumFrames = -1 }, "pipeline.num_frames"},
		{"zero frames", func(c *Config) { c.Pipeline.NumFrames = 0 }, ""},
		{"camera too large", func(c *Config) { c.Pipeline.CameraIndex = 100 }, "pipeline.camera_index"},
		{"zero ring", func(c *Config) { c.Pipeline.RingCapacity = 0 }, "pipeline.ring_capacity"},
		{"zero writes", func(c *Config) { c.Pipeline.WriteCapacity = 0 }, "pipeline.write_capacity"},
		{"negative latency", func(c *Config) { c.Device.Latency = -time.Millisecond }, "device.latency"},
		{"zero queue depth", func(c *Config) { c.Device.QueueDepth = 0 }, "device.queue_depth"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "observability.log_format"},
		{"bad sample rate", func(c *Config) { c.Observability.TracingSampleRate = 2 }, "observability.tracing_sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.field, e.Details["field"])
		})
	}
}

func TestSaveLoadKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := validConfig()
	cfg.Device.Latency = 5 * time.Millisecond
	cfg.Storage.S3Bucket = "frames"

	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("CUBECONV_TEST_BUCKET", "frames")
	got := substituteEnvVars("bucket: ${CUBECONV_TEST_BUCKET}\nprefix: ${CUBECONV_TEST_UNSET}/x")
	assert.Equal(t, "bucket: frames\nprefix: /x", got)
}
