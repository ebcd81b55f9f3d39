package domain

import (
	"encoding/json"
	"time"
)

// ProbeResult is the outcome of a single probe. Success means an HTTP
// response was received, whatever its status.
type ProbeResult struct {
	TargetID       TargetID        `json:"target_id"`
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	Method         Method          `json:"method"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at"`
	ElapsedMS      int64           `json:"elapsed_ms"`
	Success        bool            `json:"success"`
	StatusCode     int             `json:"status_code"`
	ObservedStatus int             `json:"observed_status,omitempty"`
	Response       string          `json:"response,omitempty"`
	ResponseJSON   json.RawMessage `json:"response_json,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// IsSlow is strict: a probe exactly at the threshold is not slow.
func (r ProbeResult) IsSlow(thresholdMS int64) bool {
	return r.Success && r.ElapsedMS > thresholdMS
}

// ExecutionLog is the persisted form of a ProbeResult.
type ExecutionLog struct {
	ID           int64     `json:"id"`
	TargetID     TargetID  `json:"target_id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Method       Method    `json:"method"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
	RunID        string    `json:"run_id"`
	Environment  string    `json:"environment,omitempty"`
}

// NewExecutionLog copies r into a log entry tagged with runID and env.
func NewExecutionLog(r ProbeResult, runID, env string, at time.Time) *ExecutionLog {
	return &ExecutionLog{
		TargetID:     r.TargetID,
		Name:         r.Name,
		URL:          r.URL,
		Method:       r.Method,
		Success:      r.Success,
		StatusCode:   r.StatusCode,
		ElapsedMS:    r.ElapsedMS,
		ErrorMessage: r.ErrorMessage,
		ResponseBody: r.Response,
		ExecutedAt:   at,
		RunID:        runID,
		Environment:  env,
	}
}

type RunSummary struct {
	Total            int     `json:"total"`
	Success          int     `json:"success"`
	Failure          int     `json:"failure"`
	Slow             int     `json:"slow"`
	AverageLatencyMS float64 `json:"average_latency_ms"`
	ThresholdMS      int64   `json:"threshold_ms"`
}

// LogStats summarises execution logs inside a time window.
type LogStats struct {
	Since            time.Time `json:"since"`
	SuccessCount     int64     `json:"success_count"`
	FailureCount     int64     `json:"failure_count"`
	AverageLatencyMS float64   `json:"average_latency_ms"`
}

func (s LogStats) Total() int64 { return s.SuccessCount + s.FailureCount }

// SuccessRate is a percentage; 0 when nothing ran.
func (s LogStats) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.SuccessCount) * 100 / float64(s.Total())
}

type TargetStats struct {
	Name             string  `json:"name"`
	Executions       int64   `json:"executions"`
	Successes        int64   `json:"successes"`
	AverageLatencyMS float64 `json:"average_latency_ms"`
}
