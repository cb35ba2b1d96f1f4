package gpu

import (
	"sync"
	"sync/atomic"
)

// Handle pairs a device resource identifier with the function that frees
// it. Release runs the function at most once; later calls are no-ops.
// Resources embed a *Handle and never copy the Handle itself.
type Handle struct {
	id       uint64
	release  func()
	once     sync.Once
	released atomic.Bool
}

func newHandle(id uint64, release func()) *Handle {
	return &Handle{id: id, release: release}
}

// ID returns the device-unique resource identifier.
func (h *Handle) ID() uint64 {
	return h.id
}

// Release frees the resource.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.released.Store(true)
		if h.release != nil {
			h.release()
		}
	})
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}
