// Package mmap maps whole files read-only into memory.
package mmap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a read-only memory-mapped file.
type File struct {
	mu   sync.Mutex
	data []byte
	// mapped is false when the platform has no mmap and data was read
	mapped bool
}

// Open maps path for sequential reading. Empty files are rejected since
// they cannot be mapped.
func Open(path string) (*File, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()
	if size == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("file of %d bytes is too large to map", size)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	if mapped {
		// Advisory only
		_ = adviseSequential(data)
	}
	return &File{data: data, mapped: mapped}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Len returns the file size.
func (m *File) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Close unmaps the file. It is safe to call more than once.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}
	var err error
	if m.mapped {
		err = munmap(m.data)
	}
	m.data = nil
	return err
}
