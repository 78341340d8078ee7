package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

const perfStatsInterval = 30 * time.Second

var (
	perfMeter         = otel.Meter("quizagent.perf_stats")
	cpuGauge, _       = perfMeter.Float64Gauge("process.cpu_usage")
	memoryGauge, _    = perfMeter.Int64Gauge("process.allocated_mb")
	goroutineGauge, _ = perfMeter.Int64Gauge("process.goroutines")
)

// InstrumentPerfStats records process gauges every perfStatsInterval until ctx
// is done. Headless browsers run in their own process and are not included.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(perfStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recordPerfStats(ctx)
			}
		}
	}()
}

func recordPerfStats(ctx context.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	memoryGauge.Record(ctx, int64(mem.Alloc/1_000_000))
	goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

	usage, err := cpu.PercentWithContext(ctx, 5*time.Second, false)
	if err != nil {
		slog.Debug("read cpu usage", "err", err)
		return
	}
	if len(usage) > 0 {
		cpuGauge.Record(ctx, usage[0])
	}
}
