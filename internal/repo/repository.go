package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/healthbatch/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate target")
)

// TargetStore owns target definitions. Implementations must be safe for
// concurrent use.
type TargetStore interface {
	// ListActive returns enabled targets whose environment is env or empty.
	ListActive(ctx context.Context, env string) ([]domain.Target, error)
	List(ctx context.Context) ([]domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	// Create assigns ID and timestamps. Name and environment must be unique.
	Create(ctx context.Context, t *domain.Target) error
	Update(ctx context.Context, t *domain.Target) error
	Delete(ctx context.Context, id domain.TargetID) error
	// ToggleEnabled flips the enabled flag and returns the new value.
	ToggleEnabled(ctx context.Context, id domain.TargetID) (bool, error)
	Count(ctx context.Context, env string) (total, active int, err error)
}

// LogStore is an append-only sink of execution logs plus the reporting
// queries built on it. Implementations must be safe for concurrent use.
type LogStore interface {
	Append(ctx context.Context, l *domain.ExecutionLog) error
	Recent(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error)
	RecentFailures(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error)
	SlowResponses(ctx context.Context, thresholdMS int64, since time.Time) ([]domain.ExecutionLog, error)
	ByRun(ctx context.Context, runID string) ([]domain.ExecutionLog, error)
	Stats(ctx context.Context, since time.Time) (domain.LogStats, error)
	StatsByTarget(ctx context.Context, since time.Time) ([]domain.TargetStats, error)
	// PurgeBefore deletes entries executed before the cutoff.
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

// Store is a backend that holds both targets and logs.
type Store interface {
	TargetStore
	LogStore
	Close() error
}

// Seed inserts each target that does not exist yet, matched by name and
// environment. It returns how many were created.
func Seed(ctx context.Context, ts TargetStore, targets []domain.Target) (int, error) {
	existing, err := ts.List(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[[2]string]bool, len(existing))
	for _, t := range existing {
		have[[2]string{t.Name, t.Environment}] = true
	}
	n := 0
	for _, t := range targets {
		if have[[2]string{t.Name, t.Environment}] {
			continue
		}
		if err := ts.Create(ctx, &t); err != nil {
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
