// Package debug holds the periodic diagnostics loggers started with --debug.
// They exist to correlate goroutine, stack and heap growth with the engine
// counters (outstanding handles, submissions, stale drops).
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// Probe returns extra key/value pairs appended to every sample.
type Probe func() []any

// StartGoroutineLogger launches a ticker that logs goroutine count, stack
// memory and the probe values until ctx is done.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, probe Probe) {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		return
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			logger.Info("goroutine-stacks", goroutineAttrs(samples, probe)...)
		}
	}()
}

func goroutineAttrs(samples []metrics.Sample, probe Probe) []any {
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	attrs := []any{
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("stack_sys", ms.StackSys),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
	}
	if probe != nil {
		attrs = append(attrs, probe()...)
	}
	return attrs
}
