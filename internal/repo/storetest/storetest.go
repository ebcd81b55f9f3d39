// Package storetest holds behaviour tests shared by every repo.Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo"
)

// Run exercises s against the TargetStore and LogStore contracts. s must be empty.
func Run(t *testing.T, s repo.Store) {
	t.Run("targets", func(t *testing.T) { testTargets(t, s) })
	t.Run("logs", func(t *testing.T) { testLogs(t, s) })
}

func testTargets(t *testing.T, s repo.Store) {
	ctx := context.Background()

	api := &domain.Target{Name: "api", URL: "https://a.example/health", Method: domain.MethodGet, TimeoutMS: 3000, Enabled: true, Environment: "prod"}
	require.NoError(t, s.Create(ctx, api))
	require.NotZero(t, api.ID)
	require.False(t, api.CreatedAt.IsZero())

	dup := &domain.Target{Name: "api", URL: "https://other.example", Enabled: true, Environment: "prod"}
	require.ErrorIs(t, s.Create(ctx, dup), repo.ErrDuplicate)

	apiDev := &domain.Target{Name: "api", URL: "https://dev.example", Enabled: true, Environment: "dev"}
	require.NoError(t, s.Create(ctx, apiDev))

	shared := &domain.Target{Name: "shared", URL: "https://s.example", Method: domain.MethodPost, RequestBody: `{"a":1}`, Enabled: true}
	require.NoError(t, s.Create(ctx, shared))

	off := &domain.Target{Name: "off", URL: "https://off.example", Enabled: false, Environment: "prod"}
	require.NoError(t, s.Create(ctx, off))

	active, err := s.ListActive(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "api", active[0].Name)
	require.Equal(t, "prod", active[0].Environment)
	require.Equal(t, "shared", active[1].Name)
	require.Equal(t, domain.MethodPost, active[1].Method)
	require.Equal(t, `{"a":1}`, active[1].RequestBody)

	total, nActive, err := s.Count(ctx, "prod")
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Equal(t, 2, nActive)

	got, err := s.Get(ctx, api.ID)
	require.NoError(t, err)
	require.Equal(t, "https://a.example/health", got.URL)
	require.Equal(t, int64(3000), got.TimeoutMS)

	_, err = s.Get(ctx, 999999)
	require.ErrorIs(t, err, repo.ErrNotFound)

	got.URL = "https://a.example/v2/health"
	got.Description = "primary"
	require.NoError(t, s.Update(ctx, got))
	got, err = s.Get(ctx, api.ID)
	require.NoError(t, err)
	require.Equal(t, "https://a.example/v2/health", got.URL)
	require.Equal(t, "primary", got.Description)

	require.ErrorIs(t, s.Update(ctx, &domain.Target{ID: 999999, Name: "x"}), repo.ErrNotFound)

	on, err := s.ToggleEnabled(ctx, off.ID)
	require.NoError(t, err)
	require.True(t, on)
	active, err = s.ListActive(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, active, 3)

	_, err = s.ToggleEnabled(ctx, 999999)
	require.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, s.Delete(ctx, off.ID))
	require.ErrorIs(t, s.Delete(ctx, off.ID), repo.ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func testLogs(t *testing.T, s repo.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	entries := []domain.ExecutionLog{
		{Name: "api", URL: "https://a", Method: domain.MethodGet, Success: true, StatusCode: 200, ElapsedMS: 100, ExecutedAt: base.Add(-2 * time.Hour), RunID: "old"},
		{Name: "api", URL: "https://a", Method: domain.MethodGet, Success: true, StatusCode: 200, ElapsedMS: 300, ExecutedAt: base.Add(-2 * time.Minute), RunID: "r1", Environment: "prod"},
		{Name: "web", URL: "https://w", Method: domain.MethodGet, Success: true, StatusCode: 200, ElapsedMS: 1500, ExecutedAt: base.Add(-2 * time.Minute), RunID: "r1", Environment: "prod"},
		{Name: "db", URL: "https://d", Method: domain.MethodPost, Success: false, ElapsedMS: 20, ErrorMessage: "connection refused", ExecutedAt: base.Add(-time.Minute), RunID: "r2", Environment: "prod"},
	}
	for i := range entries {
		require.NoError(t, s.Append(ctx, &entries[i]))
		require.NotZero(t, entries[i].ID)
	}

	since := base.Add(-time.Hour)

	recent, err := s.Recent(ctx, since)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "db", recent[0].Name)

	failures, err := s.RecentFailures(ctx, since)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "connection refused", failures[0].ErrorMessage)
	require.Equal(t, domain.MethodPost, failures[0].Method)

	slow, err := s.SlowResponses(ctx, 200, since)
	require.NoError(t, err)
	require.Len(t, slow, 2)
	require.Equal(t, "web", slow[0].Name)
	require.Equal(t, int64(1500), slow[0].ElapsedMS)

	byRun, err := s.ByRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	for _, l := range byRun {
		require.Equal(t, "prod", l.Environment)
	}

	st, err := s.Stats(ctx, since)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.SuccessCount)
	require.Equal(t, int64(1), st.FailureCount)
	require.InDelta(t, 900.0, st.AverageLatencyMS, 1e-6)

	per, err := s.StatsByTarget(ctx, since)
	require.NoError(t, err)
	require.Len(t, per, 3)
	require.Equal(t, "api", per[0].Name)
	require.Equal(t, int64(1), per[0].Executions)
	require.Equal(t, "db", per[1].Name)
	require.Zero(t, per[1].Successes)

	n, err := s.PurgeBefore(ctx, since)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	old, err := s.ByRun(ctx, "old")
	require.NoError(t, err)
	require.Empty(t, old)
}
