//go:build !windows

package debug

import (
	"context"
	"log/slog"
	"time"
)

// StartMemLogger logs Go heap stats every interval until ctx is done. The
// resident set size is only sampled on Windows and reported as 0 here.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, probe Probe) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			logger.Info("memstats", memAttrs(0, probe)...)
		}
	}()
}
