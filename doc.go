// Package cubeconv converts cubemap datasets into the native view of a
// target camera.
//
// A dataset holds, per camera and frame, six square color faces and six
// 16-bit inverse depth faces. cubeconv resamples them through a per-pixel
// direction table (a fisheye or Brown-Conrady camera model) and writes one
// color image and one inverse range image per frame.
//
// # Architecture
//
// The converter is a single streaming pipeline:
//
//  1. Load: the six faces of both cubemaps are decoded in parallel.
//
//  2. Render: a software device resamples the faces into the camera's
//     color and inverse range textures.
//
//  3. Readback: every output has a staging ring of K buffers. Frame i's
//     copy is queued and the copy of frame i-K is mapped, so the host only
//     blocks when the device falls K frames behind.
//
//  4. Write: PNG encoding and storage run asynchronously with a bounded
//     number of tasks in flight.
//
// Frame indices are correlated across rings by a FIFO, so every written
// file carries the pixels of the frame it is named after.
//
// # Quick Start
//
// Convert the first 500 frames of camera 0:
//
//	cubeconv run --dataset /data/town01 --intrinsics cameras.toml \
//	    --output /data/town01_fisheye --frames 500
//
// Or from Go:
//
//	cfg := config.NewConfig()
//	cfg.Dataset.Root = "/data/town01"
//	cfg.Dataset.Intrinsics = "cameras.toml"
//	cfg.Output.Root = "/data/town01_fisheye"
//
//	report, err := pipeline.NewConverter(cfg, logger.Get()).Run(ctx)
//
// # Key Packages
//
//	internal/pipeline - Staging rings, write scheduler, driver and converter
//	internal/render   - Cubemap face selection and the remap kernel
//	internal/gpu      - Software device with fences and staging buffers
//	pkg/remap         - Camera models and direction tables
//	pkg/images        - Image buffers, PNG and raw float codecs, dataset layout
//	pkg/storage       - Local, S3 and GCS output stores
//	pkg/config        - Run configuration
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics and stage timing
//
// # Output Layout
//
//	{output}/image/camera{NN}/{frame:08}.png   8-bit RGB
//	{output}/range/camera{NN}/{frame:08}.png   16-bit inverse range
//	{output}/report_camera{NN}.json            run report
//
// Side files (*.csv except intrinsics.csv, and intrinsics.toml) are copied
// next to them when requested.
package cubeconv
