package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/repo"
)

// RetentionWorker periodically deletes execution logs older than Retention.
type RetentionWorker struct {
	Logs      repo.LogStore
	Logger    *zap.Logger
	Retention time.Duration
	Interval  time.Duration
	now       func() time.Time
}

func NewRetentionWorker(logs repo.LogStore, logger *zap.Logger, retention, interval time.Duration) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionWorker{
		Logs:      logs,
		Logger:    logger,
		Retention: retention,
		Interval:  interval,
		now:       time.Now,
	}
}

// Run purges once immediately and then every Interval until ctx is done.
// A non-positive Retention disables the worker.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.Retention <= 0 {
		w.Logger.Info("retention_disabled")
		return
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	w.PurgeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.PurgeOnce(ctx)
		}
	}
}

func (w *RetentionWorker) PurgeOnce(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.Retention)
	n, err := w.Logs.PurgeBefore(ctx, cutoff)
	if err != nil {
		w.Logger.Warn("retention_purge_error", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.Logger.Info("retention_purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n
}
