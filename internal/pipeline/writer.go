package pipeline

import (
	"bytes"
	"context"

	"github.com/ajitpratap0/cubeconv/pkg/images"
	"github.com/ajitpratap0/cubeconv/pkg/pool"
	"github.com/ajitpratap0/cubeconv/pkg/storage"
)

// StoreWriter encodes images as PNG and puts them into a store.
type StoreWriter struct {
	store   storage.Store
	buffers *pool.Pool[*bytes.Buffer]
}

// NewStoreWriter creates a writer for store.
func NewStoreWriter(store storage.Store) *StoreWriter {
	return &StoreWriter{
		store: store,
		buffers: pool.New(
			func() *bytes.Buffer { return new(bytes.Buffer) },
			func(b *bytes.Buffer) { b.Reset() },
		),
	}
}

// WriteImage implements ImageWriter.
func (w *StoreWriter) WriteImage(ctx context.Context, key string, img *images.Image, flipVertical bool) error {
	buf := w.buffers.Get()
	defer w.buffers.Put(buf)

	if err := images.EncodePNG(buf, img, flipVertical); err != nil {
		return err
	}
	return w.store.Put(ctx, key, buf.Bytes())
}
