//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file on platforms without mmap.
func mapFile(f *os.File, size int) ([]byte, bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func munmap([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }
