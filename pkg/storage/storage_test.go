package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/cubeconv/pkg/config"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "image/camera00/00000000.png", "image/camera00/00000000.png"},
		{"runs/a", "image/x.png", "runs/a/image/x.png"},
		{"/runs/a/", "/image/x.png", "runs/a/image/x.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey(tt.prefix, tt.key))
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("image/camera00/00000000.png"))
	assert.Equal(t, "application/octet-stream", ContentType("remap.bin"))
}

func TestLocalStorePut(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Prepare(ctx, []string{"image/camera00", "range/camera00"}))
	assert.DirExists(t, store.Path("image/camera00"))
	assert.DirExists(t, store.Path("range/camera00"))

	require.NoError(t, store.Put(ctx, "image/camera00/00000001.png", []byte("first")))
	require.NoError(t, store.Put(ctx, "image/camera00/00000001.png", []byte("second")))

	data, err := os.ReadFile(store.Path("image/camera00/00000001.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temporary files are left behind
	entries, err := os.ReadDir(store.Path("image/camera00"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStorePrepareFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "image")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	store := NewLocalStore(root)
	err := store.Prepare(context.Background(), []string{"image/camera00"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutput))

	err = store.Put(context.Background(), "image/camera00/00000000.png", []byte("x"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutput))
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &manager.UploadOutput{Key: in.Key}, nil
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func TestS3StorePut(t *testing.T) {
	up := newFakeUploader()
	store := NewS3StoreWithUploader("datasets", "town01", up)
	assert.Equal(t, "s3://datasets/town01", store.Name())

	require.NoError(t, store.Put(context.Background(), "range/camera00/00000004.png", []byte("png")))
	assert.Equal(t, []byte("png"), up.objects["datasets/town01/range/camera00/00000004.png"])
	assert.Equal(t, "image/png", up.types["datasets/town01/range/camera00/00000004.png"])
}

func TestS3StorePutFailure(t *testing.T) {
	up := newFakeUploader()
	up.err = io.ErrUnexpectedEOF
	store := NewS3StoreWithUploader("datasets", "", up)

	err := store.Put(context.Background(), "image/camera00/00000000.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutput))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMultiStore(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(t.TempDir())
	up := newFakeUploader()
	multi := NewMultiStore(local, NewS3StoreWithUploader("b", "p", up))

	require.NoError(t, multi.Prepare(ctx, []string{"image/camera01"}))
	require.NoError(t, multi.Put(ctx, "image/camera01/00000000.png", []byte("data")))

	assert.FileExists(t, local.Path("image/camera01/00000000.png"))
	assert.Contains(t, up.objects, "b/p/image/camera01/00000000.png")
	assert.Contains(t, multi.Name(), "local:")
	assert.Contains(t, multi.Name(), "s3://b/p")
	assert.NoError(t, multi.Close())

	up.err = io.ErrClosedPipe
	assert.Error(t, multi.Put(ctx, "image/camera01/00000001.png", []byte("data")))
}

func TestNewLocalOnly(t *testing.T) {
	root := t.TempDir()
	store, err := New(context.Background(), config.StorageConfig{}, root, zaptest.NewLogger(t))
	require.NoError(t, err)

	local, ok := store.(*LocalStore)
	require.True(t, ok)
	assert.Equal(t, root, local.Root())
}

func TestNewWithoutAnyStore(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{MirrorOnly: true}, "", zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
