// Package json provides JSON serialization backed by goccy/go-json with
// pooled encode buffers.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/cubeconv/pkg/pool"
)

// maxPooledBuffer keeps very large buffers out of the pool.
const maxPooledBuffer = 1024 * 1024

var buffers = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// getBuffer gets a pooled bytes.Buffer.
func getBuffer() *bytes.Buffer {
	return buffers.Get()
}

// putBuffer returns a buffer to the pool unless it grew too large.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buffers.Put(buf)
}

// MarshalToWriter encodes v to w as indented JSON followed by a newline.
// HTML characters are not escaped.
func MarshalToWriter(w io.Writer, v interface{}) error {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
