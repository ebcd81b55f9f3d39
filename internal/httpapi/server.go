package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/healthbatch/internal/httpapi/middleware"
	"github.com/hamed0406/healthbatch/internal/notify"
	"github.com/hamed0406/healthbatch/internal/probe"
	"github.com/hamed0406/healthbatch/internal/repo"
	"github.com/hamed0406/healthbatch/internal/scheduler"
)

// BatchRunner is the part of scheduler.Runner the API drives.
type BatchRunner interface {
	RunOnce(ctx context.Context) (*scheduler.RunReport, error)
	LastRun() *scheduler.RunReport
	Running() bool
	Config() scheduler.Config
}

// Notifications is the part of notify.Alerter the API exposes.
type Notifications interface {
	Enabled() bool
	SendTest(ctx context.Context) error
	Status() []notify.ChannelStatus
}

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Logs    repo.LogStore
	Runner  BatchRunner
	Alerts  Notifications
	// Prober gives immediate feedback when a target is added. Optional.
	Prober probe.Prober
	// ConnectionCheck verifies notifier credentials (Telegram getMe). Optional.
	ConnectionCheck func(ctx context.Context) error
	Version         string

	now func() time.Time
}

func NewServer(l *zap.Logger, ts repo.TargetStore, ls repo.LogStore, runner BatchRunner, alerts Notifications, p probe.Prober) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Logger:  l,
		Targets: ts,
		Logs:    ls,
		Runner:  runner,
		Alerts:  alerts,
		Prober:  p,
		Version: "dev",
		now:     time.Now,
	}
}

// Router builds the HTTP surface. Reads need a public or admin key, writes and
// triggers an admin key; each group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLogger(s.Logger))
	r.Use(corsHandler(allowedOrigins))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	readLimit := apimw.RateLimit(pubRPM, pubBurst)
	writeLimit := apimw.RateLimit(admRPM, admBurst)
	read := func(r chi.Router) {
		r.Use(readLimit)
		r.Use(apimw.RequireAny(keys))
	}
	write := func(r chi.Router) {
		r.Use(writeLimit)
		r.Use(apimw.RequireAdmin(keys))
	}

	r.Route("/api/batch", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			read(r)
			r.Get("/", s.handleInfo)
			r.Get("/health", s.handleHealth)
			r.Get("/config", s.handleConfig)
			r.Get("/stats", s.handleStats)
		})
		r.Group(func(r chi.Router) {
			write(r)
			r.Get("/trigger", s.handleTrigger)
			r.Post("/trigger", s.handleTrigger)
			r.Get("/check-now", s.handleCheckNow)
			r.Get("/telegram/test", s.handleNotifyTest)
			r.Post("/telegram/test", s.handleNotifyTest)
		})
	})

	r.Route("/api/targets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			read(r)
			r.Get("/", s.handleListTargets)
			r.Get("/{id}", s.handleGetTarget)
		})
		r.Group(func(r chi.Router) {
			write(r)
			r.Post("/", s.handleAddTarget)
			r.Put("/{id}", s.handleUpdateTarget)
			r.Delete("/{id}", s.handleDeleteTarget)
			r.Post("/{id}/toggle", s.handleToggleTarget)
		})
	})

	r.Route("/api/logs", func(r chi.Router) {
		read(r)
		r.Get("/", s.handleRecentLogs)
		r.Get("/failures", s.handleFailures)
		r.Get("/slow", s.handleSlow)
		r.Get("/runs/{runID}", s.handleRunLogs)
		r.Get("/targets", s.handleTargetStats)
	})

	return r
}

// corsHandler allows everything when no origins are configured (dev).
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
