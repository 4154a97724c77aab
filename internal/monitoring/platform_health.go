package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15

// HealthChecker probes one upstream dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// MonitorPlatformHealth keeps the healthy flag in sync with the platform's
// REST surface. The flag feeds the local health endpoint; a flap is logged
// on every failed probe.
func MonitorPlatformHealth(ctx context.Context, checker HealthChecker, healthy *atomic.Bool) {
	monitorPlatform(ctx, checker, healthy, time.Second*HEALTHCHECK_TIMER)
}

func monitorPlatform(ctx context.Context, checker HealthChecker, healthy *atomic.Bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			isHealthy := checker.HealthCheck(ctx)
			healthy.Store(isHealthy)
			if !isHealthy {
				slog.Warn("[HealthCheck] Platform is unreachable")
			}
		}
	}
}
