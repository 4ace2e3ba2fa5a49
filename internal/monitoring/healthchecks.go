package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// MonitorHealth probes checker every interval and stores the result in
// healthy until ctx is done.
func MonitorHealth(ctx context.Context, name string, checker HealthChecker, interval time.Duration, healthy *atomic.Bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			isHealthy := checker.IsHealthy(probeCtx)
			cancel()

			if was := healthy.Swap(isHealthy); was != isHealthy {
				if isHealthy {
					slog.Info("[HealthCheck] Service recovered", slog.String("service", name))
				} else {
					slog.Warn("[HealthCheck] Service is unhealthy", slog.String("service", name))
				}
			}
		}
	}
}
