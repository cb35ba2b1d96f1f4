package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// LocalStore writes objects below a directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Name implements Store.
func (s *LocalStore) Name() string { return "local:" + s.root }

// Root returns the directory objects are written under.
func (s *LocalStore) Root() string { return s.root }

// Path maps a key to its file path.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Prepare creates the directory of every prefix.
func (s *LocalStore) Prepare(ctx context.Context, prefixes []string) error {
	for _, p := range prefixes {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := s.Path(p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeOutput, "failed to create output directory").
				WithDetail("path", dir)
		}
	}
	return nil
}

// Put writes data to a temporary file next to the target and renames it
// into place, so readers never observe a partial file.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	target := s.Path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return putError(err, s.Name(), key)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return putError(err, s.Name(), key)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return putError(err, s.Name(), key)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return putError(err, s.Name(), key)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return putError(err, s.Name(), key)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return putError(err, s.Name(), key)
	}
	return nil
}

// Close implements Store.
func (s *LocalStore) Close() error { return nil }
