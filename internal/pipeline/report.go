package pipeline

import (
	"bytes"
	"context"
	"time"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/json"
	"github.com/ajitpratap0/cubeconv/pkg/metrics"
	"github.com/ajitpratap0/cubeconv/pkg/storage"
)

// Report summarizes one conversion run. It is written next to the output
// as report_camera{camera:02}.json.
type Report struct {
	RunID           string                `json:"run_id"`
	Camera          int                   `json:"camera"`
	DatasetRoot     string                `json:"dataset_root"`
	Store           string                `json:"store"`
	Width           int                   `json:"width"`
	Height          int                   `json:"height"`
	RingCapacity    int                   `json:"ring_capacity"`
	WriteCapacity   int                   `json:"write_capacity"`
	FramesRequested uint64                `json:"frames_requested"`
	Frames          uint64                `json:"frames"`
	Written         uint64                `json:"written"`
	Stopped         bool                  `json:"stopped"`
	State           string                `json:"state"`
	StartedAt       time.Time             `json:"started_at"`
	DurationSeconds float64               `json:"duration_seconds"`
	StageAveragesMS map[string]float64    `json:"stage_averages_ms"`
	SideFiles       []string              `json:"side_files,omitempty"`
	Process         metrics.ProcessSample `json:"process"`
}

// NewStageAverages converts rolling stage averages to milliseconds.
func NewStageAverages(timer *metrics.StageTimer) map[string]float64 {
	out := make(map[string]float64)
	for stage, avg := range timer.Averages() {
		out[stage] = float64(avg) / float64(time.Millisecond)
	}
	return out
}

// Save writes the report to store under key.
func (r *Report) Save(ctx context.Context, store storage.Store, key string) error {
	var buf bytes.Buffer
	if err := json.MarshalToWriter(&buf, r); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode run report")
	}
	return store.Put(ctx, key, buf.Bytes())
}
