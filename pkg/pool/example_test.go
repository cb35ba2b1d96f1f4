package pool_test

import (
	"bytes"
	"fmt"

	"github.com/ajitpratap0/cubeconv/pkg/pool"
)

// Example demonstrates a typed pool of encode buffers.
func Example() {
	buffers := pool.New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)

	buf := buffers.Get()
	buf.WriteString("frame 00000001")
	fmt.Println(buf.Len())
	buffers.Put(buf)

	fmt.Println(buffers.Stats().InUse)

	// Output:
	// 14
	// 0
}

// ExampleBufferPool shows exact buckets for image payloads.
func ExampleBufferPool() {
	const colorBytes = 640 * 480 * 3

	payloads := pool.NewBufferPool(colorBytes)
	buf := payloads.Get(colorBytes)
	fmt.Println(len(*buf), cap(*buf))
	payloads.Put(buf)

	small := payloads.Get(1000)
	fmt.Println(len(*small), cap(*small))
	payloads.Put(small)

	// Output:
	// 921600 921600
	// 1000 2048
}
