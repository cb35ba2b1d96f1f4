// Package gpu implements a software device with the asynchronous execution
// model of a graphics API.
//
// Commands submitted to a Device run in submission order on the device
// timeline, a goroutine separate from the caller. Submit returns a Fence
// that is signalled once the command has executed. Resources (textures and
// staging buffers) live in device memory that only commands may touch.
// Host code reads results by copying a texture into a staging buffer and
// mapping the buffer, which blocks until the copy fence is signalled.
//
// Lifecycle of a readback:
//  1. CreateStagingBuffer once per slot
//  2. CopyFromTexture to schedule the device-side copy (does not block)
//  3. Map to wait for the copy and expose the bytes
//  4. Unmap before the buffer is reused
//
// Options.Latency delays every command on the timeline. With a latency
// larger than the host's per-frame work, mapping a buffer always has to
// wait, which exercises the blocking path of readback rings.
//
// Device methods are meant to be called from a single goroutine, the way
// a graphics context is bound to one thread. Fences may be waited on from
// any goroutine.
package gpu
