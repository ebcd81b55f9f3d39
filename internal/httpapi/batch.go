package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/notify"
	"github.com/hamed0406/healthbatch/internal/scheduler"
)

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"application": "healthbatch",
		"version":     s.Version,
		"timestamp":   s.stamp(),
		"endpoints": map[string]string{
			"GET /api/batch/health":             "Application health status",
			"GET|POST /api/batch/trigger":       "Trigger a run",
			"GET /api/batch/check-now":          "Run now and return every result",
			"GET|POST /api/batch/telegram/test": "Send a test notification",
			"GET /api/batch/config":             "Effective configuration",
			"GET /api/batch/stats":              "Execution statistics for the last 24h",
			"GET /api/targets":                  "List targets",
			"GET /api/logs":                     "Recent execution logs",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, active, err := s.Targets.Count(r.Context(), s.Runner.Config().Environment)
	if err != nil {
		s.storeError(w, r, "count targets", err)
		return
	}
	resp := map[string]any{
		"status":         "UP",
		"timestamp":      s.stamp(),
		"version":        s.Version,
		"active_targets": active,
		"total_targets":  total,
		"running":        s.Runner.Running(),
	}
	if last := s.Runner.LastRun(); last != nil {
		resp["last_run"] = map[string]any{
			"run_id":      last.RunID,
			"started_at":  last.StartedAt,
			"duration_ms": last.DurationMS,
			"summary":     last.Summary,
			"error":       last.Error,
		}
	}
	render.JSON(w, r, resp)
}

// runDetached runs a batch that outlives the request.
func (s *Server) runDetached(r *http.Request) (*scheduler.RunReport, error) {
	return s.Runner.RunOnce(context.WithoutCancel(r.Context()))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.Logger.Info("manual_trigger", zap.String("remote", r.RemoteAddr))
	rep, err := s.runDetached(r)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]any{
			"status":    "busy",
			"message":   "a run is already in progress",
			"timestamp": s.stamp(),
		})
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "trigger failed: "+err.Error())
		return
	}
	status := "success"
	if rep.Error != "" {
		status = "error"
	}
	render.JSON(w, r, map[string]any{
		"status":          status,
		"message":         "health check run finished",
		"timestamp":       s.stamp(),
		"run_id":          rep.RunID,
		"targets_checked": rep.Summary.Total,
		"summary":         rep.Summary,
		"duration_ms":     rep.DurationMS,
		"error":           rep.Error,
	})
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	rep, err := s.runDetached(r)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]any{"status": "busy", "timestamp": s.stamp()})
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "check failed: "+err.Error())
		return
	}
	if rep.Error != "" {
		s.fail(w, r, http.StatusInternalServerError, "check failed: "+rep.Error)
		return
	}
	results := rep.Results
	if results == nil {
		results = []domain.ProbeResult{}
	}
	render.JSON(w, r, map[string]any{
		"status":    "success",
		"timestamp": s.stamp(),
		"run_id":    rep.RunID,
		"results":   results,
		"summary":   rep.Summary,
	})
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil || !s.Alerts.Enabled() {
		s.fail(w, r, http.StatusBadRequest, "no notification channel is enabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if s.ConnectionCheck != nil {
		if err := s.ConnectionCheck(ctx); err != nil && !errors.Is(err, notify.ErrDisabled) {
			s.Logger.Warn("notify_connection_error", zap.Error(err))
			s.fail(w, r, http.StatusBadGateway, "connection check failed: "+err.Error())
			return
		}
	}
	if err := s.Alerts.SendTest(ctx); err != nil {
		s.Logger.Warn("notify_test_error", zap.Error(err))
		s.fail(w, r, http.StatusBadGateway, "failed to send test message: "+err.Error())
		return
	}
	render.JSON(w, r, map[string]any{
		"status":    "success",
		"message":   "test message sent",
		"timestamp": s.stamp(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.Runner.Config()
	total, active, err := s.Targets.Count(r.Context(), cfg.Environment)
	if err != nil {
		s.storeError(w, r, "count targets", err)
		return
	}
	var channels []notify.ChannelStatus
	notifyEnabled := false
	if s.Alerts != nil {
		channels = s.Alerts.Status()
		notifyEnabled = s.Alerts.Enabled()
	}
	render.JSON(w, r, map[string]any{
		"environment":           cfg.Environment,
		"schedule":              cfg.Schedule,
		"run_on_start":          cfg.RunOnStart,
		"run_threshold_ms":      cfg.RunThreshold.Milliseconds(),
		"slow_threshold_ms":     cfg.SlowThreshold.Milliseconds(),
		"max_concurrent_checks": cfg.Concurrency,
		"active_targets":        active,
		"total_targets":         total,
		"notifications_enabled": notifyEnabled,
		"notification_channels": channels,
		"timestamp":             s.stamp(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	since := s.now().Add(-24 * time.Hour)
	thresholdMS := s.Runner.Config().SlowThreshold.Milliseconds()

	st, err := s.Logs.Stats(ctx, since)
	if err != nil {
		s.storeError(w, r, "stats", err)
		return
	}
	slow, err := s.Logs.SlowResponses(ctx, thresholdMS, since)
	if err != nil {
		s.storeError(w, r, "slow responses", err)
		return
	}
	total, active, err := s.Targets.Count(ctx, s.Runner.Config().Environment)
	if err != nil {
		s.storeError(w, r, "count targets", err)
		return
	}
	render.JSON(w, r, map[string]any{
		"recent_logs":           st.Total(),
		"recent_failures":       st.FailureCount,
		"recent_slow_responses": len(slow),
		"success_rate":          st.SuccessRate(),
		"average_latency_ms":    st.AverageLatencyMS,
		"slow_threshold_ms":     thresholdMS,
		"active_targets":        active,
		"total_targets":         total,
		"timestamp":             s.stamp(),
	})
}
