package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/healthbatch/internal/config"
	"github.com/hamed0406/healthbatch/internal/notify"
	"github.com/hamed0406/healthbatch/internal/scheduler"
)

type checklist struct {
	out, errOut io.Writer
	failed      int
}

func (c *checklist) ok(msg string)   { fmt.Fprintln(c.out, "✔", msg) }
func (c *checklist) warn(msg string) { fmt.Fprintln(c.errOut, "⚠", msg) }
func (c *checklist) fail(msg string) {
	c.failed++
	fmt.Fprintln(c.errOut, "✖", msg)
}

func newPreflightCmd(load loader) *cobra.Command {
	var checkTelegram bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the configuration before deploying",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := &checklist{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			cfg, err := load()
			if err != nil {
				c.fail("config: " + err.Error())
				return fmt.Errorf("preflight failed")
			}
			preflight(cmd.Context(), c, cfg, checkTelegram)
			if c.failed > 0 {
				return fmt.Errorf("preflight failed: %d problem(s)", c.failed)
			}
			c.ok("preflight passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkTelegram, "check-telegram", false, "call the Telegram getMe endpoint")
	return cmd
}

func preflight(ctx context.Context, c *checklist, cfg config.Config, checkTelegram bool) {
	if len(cfg.AdminAPIKeys) == 0 {
		c.fail("ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		c.fail("PUBLIC_API_KEYS is empty (read routes are open).")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if len(k) < 16 {
				c.warn(name + " contains a key shorter than 16 characters")
				break
			}
		}
	}

	c.ok("ADDR=" + cfg.Addr)

	if every, sched, err := scheduler.ParseSchedule(cfg.Schedule); err != nil {
		c.fail("schedule: " + err.Error())
	} else if every == 0 && sched == nil {
		c.warn("schedule is 0; runs only happen when triggered")
	} else {
		c.ok("schedule=" + cfg.Schedule)
	}
	c.ok(fmt.Sprintf("run_duration_threshold=%s slow_threshold=%s", cfg.RunDurationThreshold, cfg.SlowThresholdOrDefault()))

	switch {
	case cfg.DatabaseURL != "":
		c.ok("DATABASE_URL present")
	case cfg.SQLitePath != "":
		c.ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		c.warn("no DATABASE_URL or SQLITE_PATH; targets and logs are kept in memory only.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		c.warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		c.ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	tg := notify.NewTelegram(cfg.Telegram.Enabled, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	st := tg.Status()
	switch {
	case !st.Enabled:
		c.warn("telegram disabled")
	case !st.Configured:
		c.fail("telegram enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is missing")
	default:
		c.ok(fmt.Sprintf("telegram bot_token=%s chat_id=%s", st.Masked["bot_token"], st.Masked["chat_id"]))
		if checkTelegram {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := tg.CheckConnection(ctx); err != nil {
				c.fail("telegram getMe: " + err.Error())
			} else {
				c.ok("telegram connection")
			}
		}
	}
	if cfg.Slack.WebhookURL != "" {
		c.ok("slack webhook configured")
	}
	if cfg.Email.Enabled {
		c.ok(fmt.Sprintf("email via %s:%d to %d recipient(s)", cfg.Email.Host, cfg.Email.Port, len(cfg.Email.To)))
	}

	if len(cfg.Targets) == 0 {
		c.warn("no seed targets in config; add them through the API")
	} else {
		c.ok(fmt.Sprintf("%d seed target(s)", len(cfg.Targets)))
	}
}
