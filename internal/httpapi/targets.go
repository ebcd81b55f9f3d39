package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
)

type targetPayload struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	TimeoutMS   int64  `json:"timeout_ms"`
	RequestBody string `json:"request_body"`
	Enabled     *bool  `json:"enabled"`
	Environment string `json:"environment"`
	Description string `json:"description"`
}

// apply validates p and copies it onto t. The URL is normalized and the name
// defaults to the URL host.
func (p targetPayload) apply(t *domain.Target) string {
	if !isValidHTTPURL(p.URL) {
		return "url must be an absolute http(s) URL"
	}
	if p.TimeoutMS < 0 {
		return "timeout_ms must not be negative"
	}
	m := strings.ToUpper(strings.TrimSpace(p.Method))
	if m != "" && m != string(domain.MethodGet) && m != string(domain.MethodPost) {
		return "method must be GET or POST"
	}

	t.URL = normalizeHTTPURL(p.URL)
	t.Name = strings.TrimSpace(p.Name)
	if t.Name == "" {
		if u, err := url.Parse(t.URL); err == nil {
			t.Name = u.Host
		}
	}
	t.Method = domain.ParseMethod(m)
	t.TimeoutMS = p.TimeoutMS
	t.RequestBody = p.RequestBody
	t.Enabled = p.Enabled == nil || *p.Enabled
	t.Environment = strings.TrimSpace(p.Environment)
	t.Description = p.Description
	return ""
}

func targetID(r *http.Request) (domain.TargetID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return domain.TargetID(n), true
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		s.storeError(w, r, "list targets", err)
		return
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	render.JSON(w, r, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := s.Targets.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "get target", err)
		return
	}
	render.JSON(w, r, t)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if err := render.DecodeJSON(r.Body, &p); err != nil {
		s.fail(w, r, http.StatusBadRequest, "bad payload")
		return
	}
	t := &domain.Target{}
	if msg := p.apply(t); msg != "" {
		s.fail(w, r, http.StatusBadRequest, msg)
		return
	}
	if err := s.Targets.Create(r.Context(), t); err != nil {
		s.storeError(w, r, "create target", err)
		return
	}

	resp := map[string]any{"target": t}
	// one synchronous probe for immediate feedback
	if s.Prober != nil {
		res := s.probeOnce(r.Context(), *t)
		resp["result"] = res
		s.Logger.Info("added_target",
			zap.Int64("id", int64(t.ID)),
			zap.String("url", t.URL),
			zap.Bool("success", res.Success),
			zap.Int64("elapsed_ms", res.ElapsedMS),
		)
	} else {
		s.Logger.Info("added_target", zap.Int64("id", int64(t.ID)), zap.String("url", t.URL))
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

func (s *Server) probeOnce(ctx context.Context, t domain.Target) domain.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, t.ProbeTimeout(domain.DefaultTimeoutMS*time.Millisecond)+time.Second)
	defer cancel()
	return s.Prober.Probe(ctx, t)
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var p targetPayload
	if err := render.DecodeJSON(r.Body, &p); err != nil {
		s.fail(w, r, http.StatusBadRequest, "bad payload")
		return
	}
	t, err := s.Targets.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "get target", err)
		return
	}
	if msg := p.apply(t); msg != "" {
		s.fail(w, r, http.StatusBadRequest, msg)
		return
	}
	if err := s.Targets.Update(r.Context(), t); err != nil {
		s.storeError(w, r, "update target", err)
		return
	}
	s.Logger.Info("updated_target", zap.Int64("id", int64(id)))
	render.JSON(w, r, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.Targets.Delete(r.Context(), id); err != nil {
		s.storeError(w, r, "delete target", err)
		return
	}
	s.Logger.Info("deleted_target", zap.Int64("id", int64(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	enabled, err := s.Targets.ToggleEnabled(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "toggle target", err)
		return
	}
	s.Logger.Info("toggled_target", zap.Int64("id", int64(id)), zap.Bool("enabled", enabled))
	render.JSON(w, r, map[string]any{"id": id, "enabled": enabled})
}
