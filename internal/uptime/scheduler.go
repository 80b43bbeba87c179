package uptime

import (
	"context"
	"time"

	"facility-uptime-monitor/internal/logger"

	"go.uber.org/zap"
)

// StartScheduler runs the aggregator once, then on every tick until ctx is done.
func (a *Aggregator) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Uptime aggregation job started",
		zap.Duration("interval", interval),
	)

	a.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Uptime aggregation job stopped")
			return
		case <-ticker.C:
			a.runScheduled(ctx)
		}
	}
}

func (a *Aggregator) runScheduled(ctx context.Context) {
	if _, err := a.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Scheduled uptime aggregation failed", zap.Error(err))
	}
}
