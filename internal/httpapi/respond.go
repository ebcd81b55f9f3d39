package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/repo"
)

const stampLayout = "2006-01-02 15:04:05"

func (s *Server) stamp() string { return s.now().Format(stampLayout) }

// ErrResponse is the body of every non-2xx reply.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	_ = render.Render(w, r, &ErrResponse{
		HTTPStatusCode: code,
		Status:         "error",
		Message:        msg,
		Timestamp:      s.stamp(),
	})
}

// storeError maps repository sentinels onto HTTP status codes.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.fail(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrDuplicate):
		s.fail(w, r, http.StatusConflict, "target with this name already exists in the environment")
	default:
		s.Logger.Error("store_error", zap.String("op", op), zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, op+" failed")
	}
}

func queryInt64(r *http.Request, key string, def int64) (int64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// since reads ?hours= (default 24) and returns the matching lower bound.
func (s *Server) since(r *http.Request) (time.Time, bool) {
	h, ok := queryInt64(r, "hours", 24)
	if !ok || h == 0 {
		return time.Time{}, false
	}
	return s.now().Add(-time.Duration(h) * time.Hour), true
}
