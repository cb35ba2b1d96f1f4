package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ProcessSample is a point-in-time view of the converter process.
type ProcessSample struct {
	RSSBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	NumGoroutines int     `json:"num_goroutines"`
	HeapBytes     uint64  `json:"heap_bytes"`
}

// SampleProcess reads resource usage of the current process. Fields the
// platform cannot report stay zero.
func SampleProcess(ctx context.Context) (ProcessSample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	sample := ProcessSample{
		NumGoroutines: runtime.NumGoroutine(),
		HeapBytes:     ms.HeapAlloc,
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return sample, err
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
		sample.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		sample.CPUPercent = cpu
	}
	return sample, nil
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
