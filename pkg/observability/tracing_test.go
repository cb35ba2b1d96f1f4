package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	err = Trace(context.Background(), "noop", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		Enabled:        true,
		ServiceName:    "cubeconv-test",
		ServiceVersion: "test",
		SamplingRate:   1.0,
		Writer:         &buf,
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Trace(context.Background(), "frame", func(context.Context) error { return boom },
		attribute.Int("frame", 7))
	assert.ErrorIs(t, err, boom)

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"Name":"frame"`)
	assert.Contains(t, out, "boom")
}
