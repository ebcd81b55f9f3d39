package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/config"
	"github.com/hamed0406/healthbatch/internal/logging"
	"github.com/hamed0406/healthbatch/internal/notify"
	"github.com/hamed0406/healthbatch/internal/probe"
	"github.com/hamed0406/healthbatch/internal/recorder"
	"github.com/hamed0406/healthbatch/internal/repo"
	"github.com/hamed0406/healthbatch/internal/repo/memory"
	"github.com/hamed0406/healthbatch/internal/repo/postgres"
	"github.com/hamed0406/healthbatch/internal/repo/sqlite"
	"github.com/hamed0406/healthbatch/internal/scheduler"
)

// app holds everything a command needs, wired from one Config.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    repo.Store
	prober   *probe.HTTPProber
	telegram *notify.Telegram
	alerter  *notify.Alerter
	runner   *scheduler.Runner
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if _, _, err := scheduler.ParseSchedule(cfg.Schedule); err != nil {
		return nil, err
	}
	log, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if n, err := repo.Seed(ctx, store, cfg.SeedTargets()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed targets: %w", err)
	} else if n > 0 {
		log.Info("targets_seeded", zap.Int("created", n))
	}

	prober := probe.NewHTTPProber(log, cfg.DefaultProbeTimeout, cfg.MaxResponseBytes)
	prober.DNSDiagnosis = cfg.DNSDiagnosis

	tg := notify.NewTelegram(cfg.Telegram.Enabled, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	channels := notify.Multi{tg}
	if s := notify.NewSlack(cfg.Slack.WebhookURL); s != nil {
		channels = append(channels, s)
	}
	e := cfg.Email
	channels = append(channels, notify.NewEmail(e.Enabled, e.Host, e.Port, e.Username, e.Password, e.From, e.To))
	alerter := notify.NewAlerter(channels, log)
	if !alerter.Enabled() {
		log.Info("notifications_disabled")
	}

	runner := scheduler.NewRunner(log, store, prober, recorder.New(store, cfg.Environment, log), alerter, scheduler.Config{
		Environment:   cfg.Environment,
		Schedule:      cfg.Schedule,
		RunOnStart:    cfg.RunOnStart,
		SlowThreshold: cfg.SlowThresholdOrDefault(),
		RunThreshold:  cfg.RunDurationThreshold,
		Concurrency:   cfg.MaxConcurrentChecks,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		prober:   prober,
		telegram: tg,
		alerter:  alerter,
		runner:   runner,
	}, nil
}

// openStore picks Postgres, then SQLite, then memory.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("store_selected", zap.String("kind", "postgres"))
		return s, nil
	case cfg.SQLitePath != "":
		s, err := sqlite.New(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, nil
	default:
		log.Warn("store_selected", zap.String("kind", "memory"))
		return memory.New(), nil
	}
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.store.Close()
}
