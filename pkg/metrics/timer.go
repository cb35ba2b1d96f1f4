package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stage names a timed step of a frame.
type Stage string

// Pipeline stages in frame order.
const (
	StageLoad   Stage = "load"
	StageUnpack Stage = "unpack"
	StageRender Stage = "render"
	StagePack   Stage = "pack"
	StageWrite  Stage = "write"
)

// Stages lists every stage in frame order.
var Stages = []Stage{StageLoad, StageUnpack, StageRender, StagePack, StageWrite}

// DefaultWindow is the number of samples averaged per stage.
const DefaultWindow = 20

// StageTimer keeps a rolling window of the most recent durations per stage
// and mirrors every sample into StageDuration. Safe for concurrent use since
// the write stage is observed from write goroutines.
type StageTimer struct {
	mu      sync.Mutex
	window  int
	samples map[Stage]*rollingWindow
}

type rollingWindow struct {
	values []time.Duration
	next   int
	sum    time.Duration
	total  int64
}

// NewStageTimer creates a timer averaging the last window samples.
func NewStageTimer(window int) *StageTimer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &StageTimer{
		window:  window,
		samples: make(map[Stage]*rollingWindow),
	}
}

// Observe records one sample for stage.
func (t *StageTimer) Observe(stage Stage, d time.Duration) {
	StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.samples[stage]
	if !ok {
		w = &rollingWindow{values: make([]time.Duration, 0, t.window)}
		t.samples[stage] = w
	}
	w.total++
	if len(w.values) < t.window {
		w.values = append(w.values, d)
		w.sum += d
		return
	}
	w.sum += d - w.values[w.next]
	w.values[w.next] = d
	w.next = (w.next + 1) % t.window
}

// Start begins timing stage and returns the function that records it.
//
// Example:
//
//	stop := timer.Start(metrics.StageLoad)
//	faces, err := loader.LoadFaces(ctx, frame)
//	stop()
func (t *StageTimer) Start(stage Stage) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		t.Observe(stage, d)
		return d
	}
}

// Average returns the rolling average for stage, or 0 without samples.
func (t *StageTimer) Average(stage Stage) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.samples[stage]
	if !ok || len(w.values) == 0 {
		return 0
	}
	return w.sum / time.Duration(len(w.values))
}

// Count returns how many samples were ever observed for stage.
func (t *StageTimer) Count(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.samples[stage]; ok {
		return w.total
	}
	return 0
}

// Averages returns the rolling average of every observed stage, keyed by
// stage name.
func (t *StageTimer) Averages() map[string]time.Duration {
	out := make(map[string]time.Duration, len(Stages))
	for _, s := range Stages {
		if t.Count(s) > 0 {
			out[string(s)] = t.Average(s)
		}
	}
	return out
}

// Summary renders the averages in frame order, e.g.
// "load=1.2ms unpack=300µs render=4ms pack=0s write=2.5ms".
func (t *StageTimer) Summary() string {
	parts := make([]string, 0, len(Stages))
	for _, s := range Stages {
		parts = append(parts, fmt.Sprintf("%s=%s", s, t.Average(s).Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
