package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/httpapi"
	apimw "github.com/hamed0406/healthbatch/internal/httpapi/middleware"
	"github.com/hamed0406/healthbatch/internal/scheduler"
)

func newServeCmd(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := httpapi.NewServer(a.log, a.store, a.store, a.runner, a.alerter, a.prober)
	api.Version = Version
	if a.telegram.Enabled() {
		api.ConnectionCheck = a.telegram.CheckConnection
	}
	keys := apimw.Keys{Public: a.cfg.PublicAPIKeys, Admin: a.cfg.AdminAPIKeys}
	if keys.Open() {
		a.log.Warn("api_keys_missing", zap.String("hint", "set PUBLIC_API_KEYS and ADMIN_API_KEYS"))
	}
	httpSrv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           api.Router(keys, a.cfg.AllowedOrigins, a.cfg.PublicRPM, a.cfg.PublicBurst, a.cfg.AdminRPM, a.cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.runner.Run(ctx); err != nil {
			a.log.Error("scheduler_error", zap.Error(err))
		}
	}()
	retention := scheduler.NewRetentionWorker(a.store, a.log,
		time.Duration(a.cfg.RetentionDays)*24*time.Hour, a.cfg.RetentionInterval)
	go func() {
		defer wg.Done()
		retention.Run(ctx)
	}()

	errc := make(chan error, 1)
	go func() {
		a.log.Info("api_listen", zap.String("addr", a.cfg.Addr))
		errc <- httpSrv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	a.log.Info("shutdown_started")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		a.log.Warn("http_shutdown_error", zap.Error(serr))
	}
	cancel()
	wg.Wait()
	a.log.Info("shutdown_complete")

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
