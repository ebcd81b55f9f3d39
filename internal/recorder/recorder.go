// Package recorder persists one execution log per probe.
package recorder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo"
)

// Recorder appends probe outcomes to a LogStore. Failures are logged here and
// returned so callers can count them; they never stop a run.
type Recorder struct {
	logs        repo.LogStore
	log         *zap.Logger
	environment string
	now         func() time.Time
}

func New(logs repo.LogStore, environment string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		logs:        logs,
		log:         log,
		environment: environment,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Record stores res for target under runID. Safe for concurrent use.
func (r *Recorder) Record(ctx context.Context, target domain.Target, res domain.ProbeResult, runID string) error {
	if r.logs == nil {
		return nil
	}
	entry := domain.NewExecutionLog(res, runID, r.environment, r.now())
	if entry.TargetID == 0 {
		entry.TargetID = target.ID
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		r.log.Warn("record_error",
			zap.String("run_id", runID),
			zap.Int64("target_id", int64(target.ID)),
			zap.String("target", target.Name),
			zap.Error(err),
		)
		return fmt.Errorf("record %s: %w", target.Name, err)
	}
	r.log.Debug("recorded",
		zap.String("run_id", runID),
		zap.String("target", target.Name),
		zap.Bool("success", res.Success),
		zap.Int64("elapsed_ms", res.ElapsedMS),
	)
	return nil
}
