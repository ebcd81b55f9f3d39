package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/aggregate"
	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/probe"
	"github.com/hamed0406/healthbatch/internal/repo"
)

// ErrRunInProgress is returned by RunOnce when another run has not finished.
var ErrRunInProgress = errors.New("run already in progress")

// Recorder persists a single probe outcome.
type Recorder interface {
	Record(ctx context.Context, target domain.Target, res domain.ProbeResult, runID string) error
}

// Alerts receives the outcome of a run. Implementations must not block on
// delivery failures.
type Alerts interface {
	NotifyFailures(ctx context.Context, failed []domain.ProbeResult)
	NotifySlow(ctx context.Context, slow []domain.ProbeResult, threshold time.Duration)
	NotifyRunDurationExceeded(ctx context.Context, elapsed, threshold time.Duration)
	NotifyRunError(ctx context.Context, err error)
}

type noAlerts struct{}

func (noAlerts) NotifyFailures(context.Context, []domain.ProbeResult) {}
func (noAlerts) NotifySlow(context.Context, []domain.ProbeResult, time.Duration) {}
func (noAlerts) NotifyRunDurationExceeded(context.Context, time.Duration, time.Duration) {}
func (noAlerts) NotifyRunError(context.Context, error) {}

// Config controls which targets a run covers, how they are probed and when
// a run or probe counts as slow.
type Config struct {
	Environment   string
	Schedule      string
	RunOnStart    bool
	SlowThreshold time.Duration
	RunThreshold  time.Duration
	Concurrency   int
}

// RunReport describes one finished run.
type RunReport struct {
	RunID        string               `json:"run_id"`
	Environment  string               `json:"environment,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	Duration     time.Duration        `json:"-"`
	DurationMS   int64                `json:"duration_ms"`
	Results      []domain.ProbeResult `json:"results"`
	Summary      domain.RunSummary    `json:"summary"`
	RecordErrors int                  `json:"record_errors"`
	Error        string               `json:"error,omitempty"`
}

// Runner owns the batch cycle: load targets, probe them through a bounded
// pool, record every result, aggregate and alert. At most one run is active.
type Runner struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Prober  probe.Prober
	Record  Recorder
	Alerts  Alerts
	cfg     Config

	running atomic.Bool
	mu      sync.RWMutex
	last    *RunReport
	now     func() time.Time
}

// NewRunner fills in defaults: concurrency 1, a 10s run threshold and a slow
// threshold equal to the run threshold. A nil alerts sends nothing.
func NewRunner(
	logger *zap.Logger,
	ts repo.TargetStore,
	prober probe.Prober,
	rec Recorder,
	alerts Alerts,
	cfg Config,
) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RunThreshold <= 0 {
		cfg.RunThreshold = 10 * time.Second
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = cfg.RunThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerts == nil {
		alerts = noAlerts{}
	}
	return &Runner{
		Logger:  logger,
		Targets: ts,
		Prober:  prober,
		Record:  rec,
		Alerts:  alerts,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Config returns the effective configuration after defaults.
func (r *Runner) Config() Config { return r.cfg }

// Running reports whether a run is in flight.
func (r *Runner) Running() bool { return r.running.Load() }

// LastRun returns the most recent finished run, or nil.
func (r *Runner) LastRun() *RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// RunOnce executes a full run unless one is already active, in which case it
// returns ErrRunInProgress without doing anything. Scheduled and manual
// triggers both go through here.
func (r *Runner) RunOnce(ctx context.Context) (*RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.Logger.Warn("run_rejected_busy")
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	report := r.execute(ctx)

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()
	return report, nil
}

func (r *Runner) execute(ctx context.Context) (report *RunReport) {
	runID := uuid.NewString()
	start := r.now()
	report = &RunReport{RunID: runID, Environment: r.cfg.Environment, StartedAt: start}
	log := r.Logger.With(zap.String("run_id", runID))
	log.Info("run_started", zap.String("environment", r.cfg.Environment))

	defer func() {
		if p := recover(); p != nil {
			r.fail(ctx, log, report, fmt.Errorf("run panicked: %v", p))
			report.Duration = r.now().Sub(start)
			report.DurationMS = report.Duration.Milliseconds()
		}
	}()

	targets, err := r.Targets.ListActive(ctx, r.cfg.Environment)
	if err != nil {
		r.fail(ctx, log, report, fmt.Errorf("load targets: %w", err))
		report.Duration = r.now().Sub(start)
		report.DurationMS = report.Duration.Milliseconds()
		return report
	}
	if len(targets) == 0 {
		log.Info("run_no_targets")
	}

	report.Results, report.RecordErrors = r.probeAll(ctx, log, targets, runID)

	summary, failed, slow := aggregate.Classify(report.Results, r.cfg.SlowThreshold)
	report.Summary = summary
	if len(failed) > 0 {
		r.Alerts.NotifyFailures(ctx, failed)
	}
	if len(slow) > 0 {
		r.Alerts.NotifySlow(ctx, slow, r.cfg.SlowThreshold)
	}

	elapsed := r.now().Sub(start)
	report.Duration = elapsed
	report.DurationMS = elapsed.Milliseconds()
	if elapsed > r.cfg.RunThreshold {
		log.Warn("run_duration_exceeded",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", r.cfg.RunThreshold),
		)
		r.Alerts.NotifyRunDurationExceeded(ctx, elapsed, r.cfg.RunThreshold)
	}

	log.Info("run_finished",
		zap.Int("total", summary.Total),
		zap.Int("success", summary.Success),
		zap.Int("failure", summary.Failure),
		zap.Int("slow", summary.Slow),
		zap.Float64("avg_latency_ms", summary.AverageLatencyMS),
		zap.Int("record_errors", report.RecordErrors),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return report
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, report *RunReport, err error) {
	report.Error = err.Error()
	log.Error("run_error", zap.Error(err))
	r.Alerts.NotifyRunError(ctx, err)
}

// probeAll probes every target once through a bounded pool and records each
// result. Results keep the order of targets.
func (r *Runner) probeAll(ctx context.Context, log *zap.Logger, targets []domain.Target, runID string) ([]domain.ProbeResult, int) {
	results := make([]domain.ProbeResult, len(targets))
	var recordErrs atomic.Int64

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, tgt := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()

			res := r.probe(ctx, log, tgt)
			results[i] = res

			if !r.record(ctx, log, tgt, res, runID) {
				recordErrs.Add(1)
			}
		}()
	}

	wg.Wait()
	return results, int(recordErrs.Load())
}

// record stores one result and reports whether it was kept. A panicking
// recorder counts as a failed record.
func (r *Runner) record(ctx context.Context, log *zap.Logger, t domain.Target, res domain.ProbeResult, runID string) (ok bool) {
	if r.Record == nil {
		return true
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("record_panic", zap.String("target", t.Name), zap.Any("panic", p))
			ok = false
		}
	}()
	return r.Record.Record(ctx, t, res, runID) == nil
}

func (r *Runner) probe(ctx context.Context, log *zap.Logger, t domain.Target) (res domain.ProbeResult) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("probe_panic", zap.String("target", t.Name), zap.Any("panic", p))
			res = domain.ProbeResult{
				TargetID:     t.ID,
				Name:         t.Name,
				URL:          t.URL,
				Method:       domain.ParseMethod(string(t.Method)),
				ErrorMessage: fmt.Sprintf("probe panicked: %v", p),
			}
		}
	}()
	res = r.Prober.Probe(ctx, t)
	if !res.Success {
		log.Warn("probe_failed",
			zap.String("target", t.Name),
			zap.String("url", t.URL),
			zap.Int64("elapsed_ms", res.ElapsedMS),
			zap.String("error", res.ErrorMessage),
		)
	}
	return res
}
