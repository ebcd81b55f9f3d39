package domain

import (
	"strings"
	"time"
)

type TargetID int64

type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ParseMethod maps free-form input to a supported method. Anything that is
// not POST is probed as GET.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), string(MethodPost)) {
		return MethodPost
	}
	return MethodGet
}

const DefaultTimeoutMS = 5000

// Target is a remote HTTP endpoint to probe.
type Target struct {
	ID          TargetID  `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Method      Method    `json:"method"`
	TimeoutMS   int64     `json:"timeout_ms"`
	RequestBody string    `json:"request_body,omitempty"`
	Enabled     bool      `json:"enabled"`
	Environment string    `json:"environment,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProbeTimeout returns the per-target timeout, or def when none is set.
func (t Target) ProbeTimeout(def time.Duration) time.Duration {
	if t.TimeoutMS > 0 {
		return time.Duration(t.TimeoutMS) * time.Millisecond
	}
	return def
}

// MatchesEnvironment reports whether the target is active for env.
// Targets without an environment match every environment.
func (t Target) MatchesEnvironment(env string) bool {
	return t.Environment == "" || t.Environment == env
}
