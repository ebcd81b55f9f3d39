package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/hamed0406/healthbatch/internal/domain"
)

func (s *Server) renderLogs(w http.ResponseWriter, r *http.Request, logs []domain.ExecutionLog) {
	if logs == nil {
		logs = []domain.ExecutionLog{}
	}
	render.JSON(w, r, logs)
}

// GET /api/logs?hours=24
func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	since, ok := s.since(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "hours must be a positive integer")
		return
	}
	logs, err := s.Logs.Recent(r.Context(), since)
	if err != nil {
		s.storeError(w, r, "recent logs", err)
		return
	}
	s.renderLogs(w, r, logs)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	since, ok := s.since(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "hours must be a positive integer")
		return
	}
	logs, err := s.Logs.RecentFailures(r.Context(), since)
	if err != nil {
		s.storeError(w, r, "recent failures", err)
		return
	}
	s.renderLogs(w, r, logs)
}

// GET /api/logs/slow?hours=24&threshold_ms=1000
func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	since, ok := s.since(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "hours must be a positive integer")
		return
	}
	threshold, ok := queryInt64(r, "threshold_ms", s.Runner.Config().SlowThreshold.Milliseconds())
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "threshold_ms must be a non-negative integer")
		return
	}
	logs, err := s.Logs.SlowResponses(r.Context(), threshold, since)
	if err != nil {
		s.storeError(w, r, "slow responses", err)
		return
	}
	s.renderLogs(w, r, logs)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		s.fail(w, r, http.StatusBadRequest, "missing run id")
		return
	}
	logs, err := s.Logs.ByRun(r.Context(), runID)
	if err != nil {
		s.storeError(w, r, "run logs", err)
		return
	}
	if len(logs) == 0 {
		s.fail(w, r, http.StatusNotFound, "no logs for run "+runID)
		return
	}
	s.renderLogs(w, r, logs)
}

func (s *Server) handleTargetStats(w http.ResponseWriter, r *http.Request) {
	since, ok := s.since(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "hours must be a positive integer")
		return
	}
	stats, err := s.Logs.StatsByTarget(r.Context(), since)
	if err != nil {
		s.storeError(w, r, "target stats", err)
		return
	}
	if stats == nil {
		stats = []domain.TargetStats{}
	}
	render.JSON(w, r, stats)
}
