package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
)

// Alerter turns run outcomes into messages on a Notifier. None of its
// Notify* methods return errors: a disabled channel is a logged no-op and
// delivery failures are logged and dropped.
type Alerter struct {
	ch  Notifier
	log *zap.Logger
	now func() time.Time
}

func NewAlerter(ch Notifier, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{ch: ch, log: log, now: time.Now}
}

func (a *Alerter) Enabled() bool { return a.ch != nil && a.ch.Enabled() }

func (a *Alerter) Notify(ctx context.Context, message string) {
	a.send(ctx, "message", "", message)
}

func (a *Alerter) NotifyFailures(ctx context.Context, failed []domain.ProbeResult) {
	if len(failed) == 0 {
		return
	}
	a.sendTemplate(ctx, "failure", titleFailure, alertData{Results: failed})
}

func (a *Alerter) NotifySlow(ctx context.Context, slow []domain.ProbeResult, threshold time.Duration) {
	if len(slow) == 0 {
		return
	}
	a.sendTemplate(ctx, "slow", titleSlow, alertData{Results: slow, ThresholdMS: threshold.Milliseconds()})
}

func (a *Alerter) NotifyRunDurationExceeded(ctx context.Context, elapsed, threshold time.Duration) {
	a.sendTemplate(ctx, "duration", titleDuration, alertData{
		ElapsedMS:   elapsed.Milliseconds(),
		ThresholdMS: threshold.Milliseconds(),
	})
}

func (a *Alerter) NotifyRunError(ctx context.Context, err error) {
	d := alertData{}
	if err != nil {
		d.Error = err.Error()
	}
	a.sendTemplate(ctx, "run_error", titleRunError, d)
}

// SendTest sends an operator test message and reports the outcome.
func (a *Alerter) SendTest(ctx context.Context) error {
	if !a.Enabled() {
		return ErrDisabled
	}
	body, err := render("test", alertData{Time: a.now()})
	if err != nil {
		return err
	}
	return a.ch.Send(ctx, titleTest, body)
}

// Status lists the configured channels with masked credentials.
func (a *Alerter) Status() []ChannelStatus {
	switch ch := a.ch.(type) {
	case Multi:
		return ch.statuses()
	case statuser:
		return []ChannelStatus{ch.Status()}
	}
	return nil
}

func (a *Alerter) sendTemplate(ctx context.Context, kind, title string, d alertData) {
	if !a.Enabled() {
		a.log.Debug("alert_suppressed", zap.String("kind", kind))
		return
	}
	d.Time = a.now()
	body, err := render(kind, d)
	if err != nil {
		a.log.Warn("alert_render_error", zap.String("kind", kind), zap.Error(err))
		return
	}
	a.send(ctx, kind, title, body)
}

func (a *Alerter) send(ctx context.Context, kind, title, body string) {
	if !a.Enabled() {
		a.log.Debug("alert_suppressed", zap.String("kind", kind))
		return
	}
	if err := a.ch.Send(ctx, title, body); err != nil {
		a.log.Warn("alert_send_error", zap.String("kind", kind), zap.Error(err))
		return
	}
	a.log.Info("alert_sent", zap.String("kind", kind))
}
