package json

import (
	"bytes"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name"`
	Frames uint64 `json:"frames"`
}

func TestMarshalToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, sample{Name: "<a&b>", Frames: 1}))

	s := buf.String()
	assert.Contains(t, s, "<a&b>")
	assert.Contains(t, s, "\n  \"frames\": 1")
	assert.True(t, strings.HasSuffix(s, "}\n"))

	var out sample
	require.NoError(t, gojson.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "<a&b>", out.Name)
}

func TestBufferPool(t *testing.T) {
	buf := getBuffer()
	buf.WriteString("dirty")
	putBuffer(buf)

	again := getBuffer()
	assert.Zero(t, again.Len())
	putBuffer(again)

	putBuffer(bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1)))
}
