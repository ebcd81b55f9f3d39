package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts a Go duration ("5m") or a cron expression with an
// optional seconds field. A zero duration disables scheduling.
func ParseSchedule(spec string) (every time.Duration, sched cron.Schedule, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, nil, errors.New("empty schedule")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, nil, fmt.Errorf("negative interval %q", spec)
		}
		return d, nil, nil
	}
	sched, err = cronParser.Parse(spec)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return 0, sched, nil
}

// Run drives RunOnce from the configured schedule until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	every, sched, err := ParseSchedule(r.cfg.Schedule)
	if err != nil {
		return err
	}
	if sched != nil {
		return r.runCron(ctx, sched)
	}
	if every == 0 {
		r.Logger.Info("scheduler_disabled")
		return nil
	}
	return r.runTicker(ctx, every)
}

func (r *Runner) runTicker(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	r.Logger.Info("scheduler_started", zap.Duration("interval", every))

	if r.cfg.RunOnStart {
		r.tick(ctx, "start")
	}
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("scheduler_stopped")
			return nil
		case <-t.C:
			r.tick(ctx, "interval")
		}
	}
}

func (r *Runner) runCron(ctx context.Context, sched cron.Schedule) error {
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() { r.tick(ctx, "cron") }))
	c.Start()
	r.Logger.Info("scheduler_started",
		zap.String("cron", r.cfg.Schedule),
		zap.Time("next", sched.Next(time.Now())),
	)

	var first sync.WaitGroup
	if r.cfg.RunOnStart {
		first.Add(1)
		go func() {
			defer first.Done()
			r.tick(ctx, "start")
		}()
	}

	<-ctx.Done()
	// waits for a run in flight
	<-c.Stop().Done()
	first.Wait()
	r.Logger.Info("scheduler_stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); errors.Is(err, ErrRunInProgress) {
		r.Logger.Info("tick_skipped", zap.String("source", source))
	}
}
