// Package metrics provides performance tracking and observability for
// cubeconv using Prometheus metrics.
//
// # Overview
//
// The metrics package provides:
//   - Pre-defined collectors for the conversion pipeline stages
//   - A rolling StageTimer that reports average per-stage latency
//   - A process resource sample for run reports
//   - An optional /metrics HTTP endpoint
//
// # Basic Usage
//
//	timer := metrics.NewStageTimer(metrics.DefaultWindow)
//	stop := timer.Start(metrics.StageRender)
//	renderFrame()
//	stop()
//
//	logger.Info("stage timings", zap.String("summary", timer.Summary()))
//
// # Metric Types
//
// Counter: frames written, write failures, backpressure waits
// Gauge: ring occupancy, outstanding write tasks
// Histogram: stage latency, device map wait, write task duration
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream label values.
const (
	StreamImage = "image"
	StreamRange = "range"
)

// latencyBuckets covers 100µs to ~6.5s, which spans a cached face decode up
// to a blocked readback on a slow device.
var latencyBuckets = prometheus.ExponentialBuckets(0.0001, 4, 9)

var (
	// StageDuration tracks per-frame stage latency in seconds.
	// Labels: stage (load/unpack/render/pack/write)
	//
	// Example:
	//	metrics.StageDuration.WithLabelValues(string(metrics.StageRender)).Observe(d.Seconds())
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cubeconv_stage_duration_seconds",
			Help:    "Per-frame pipeline stage duration in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"stage"},
	)

	// FramesWritten counts images persisted per output stream.
	FramesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeconv_frames_written_total",
			Help: "Total number of output images written",
		},
		[]string{"stream"},
	)

	// WriteFailures counts failed write tasks.
	WriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cubeconv_write_failures_total",
			Help: "Total number of failed write tasks",
		},
	)

	// BackpressureWaits counts pushes that had to wait for the oldest write task.
	BackpressureWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cubeconv_write_backpressure_waits_total",
			Help: "Number of write submissions that blocked on an outstanding task",
		},
	)

	// WritesOutstanding tracks write tasks currently in flight.
	WritesOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cubeconv_writes_outstanding",
			Help: "Number of write tasks in flight",
		},
	)

	// RingOccupancy tracks pending staging slots per stream.
	RingOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cubeconv_ring_pending_slots",
			Help: "Number of staging slots with a pending readback",
		},
		[]string{"stream"},
	)

	// MapWait tracks time spent waiting for a staging buffer to become mappable.
	MapWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cubeconv_device_map_wait_seconds",
			Help:    "Time spent blocked mapping a staging buffer",
			Buckets: latencyBuckets,
		},
	)

	// WriteTaskDuration tracks the duration of a complete write task.
	WriteTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cubeconv_write_task_duration_seconds",
			Help:    "Duration of one asynchronous write task",
			Buckets: latencyBuckets,
		},
	)
)
