package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
)

// Runner schedules ingestion cycles at a fixed interval. A failed cycle is
// logged and the loop resumes on the next tick.
type Runner struct {
	service  *Service
	interval time.Duration
}

// NewRunner creates a scheduler running one cycle per interval.
func NewRunner(service *Service, interval time.Duration) *Runner {
	return &Runner{service: service, interval: interval}
}

// Run executes an immediate cycle, then one per interval until ctx is
// cancelled. Always returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	log := logger.FromContext(ctx)

	start := time.Now()
	result, err := r.service.RunCycle(ctx)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("sync cycle failed", zap.Error(err), zap.Duration("duration", duration))
		metrics.SyncCyclesTotal.WithLabelValues("error").Inc()
		return
	}

	log.Info("sync cycle complete",
		zap.Int("synced", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", duration),
	)
	metrics.SyncCyclesTotal.WithLabelValues("ok").Inc()
	metrics.SyncCycleDuration.Observe(duration.Seconds())
}
