package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"

	"courier/contract"
)

// SelfStats is a snapshot of the server process, served by the /test
// diagnostic next to the stored-message count.
type SelfStats struct {
	PID        int     `json:"pid"`
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Goroutines int     `json:"goroutines"`
	LiveConns  int     `json:"live_connections"`
}

// HealthMonitoringWorker samples the server's own process metrics on a fixed
// interval, logs them, and keeps the latest snapshot for the diagnostic
// endpoint.
type HealthMonitoringWorker struct {
	mu             sync.RWMutex
	log            *slog.Logger
	metricInterval time.Duration
	connCounter    func() int
	latest         SelfStats
}

func NewHealthMonitoringWorker(log *slog.Logger, metricInterval time.Duration,
	connCounter func() int) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		metricInterval: metricInterval,
		connCounter:    connCounter,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			stats, err := collectSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			stats.LiveConns = w.connCounter()

			w.mu.Lock()
			w.latest = stats
			w.mu.Unlock()

			w.log.Debug("Self stats",
				"status", stats.Status,
				"cpu_percent", stats.CPUPercent,
				"rss_bytes", stats.RSSBytes,
				"live_connections", stats.LiveConns)
		}
	}
}

// GetLatest returns the most recent snapshot, zero-valued until the first
// tick fires.
func (w *HealthMonitoringWorker) GetLatest() SelfStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

// collectSelfStats retrieves technical metrics (memory, CPU, and OS status)
// for the given process.
func collectSelfStats(p *process.Process) (SelfStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return SelfStats{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return SelfStats{}, err
	}

	status, err := p.Status()
	if err != nil {
		return SelfStats{}, err
	}

	return SelfStats{
		PID:        int(p.Pid),
		Status:     status,
		CPUPercent: cpuPercent,
		RSSBytes:   memInfo.RSS,
		Goroutines: runtime.NumGoroutine(),
	}, nil
}

var _ contract.Worker = (*HealthMonitoringWorker)(nil)
