package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo/memory"
)

type failingLogs struct{ *memory.Store }

func (failingLogs) Append(context.Context, *domain.ExecutionLog) error {
	return errors.New("disk full")
}

func TestRecorder_AppendsTaggedEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := New(store, "prod", zap.NewNop())

	tgt := domain.Target{ID: 4, Name: "api", URL: "https://a.example"}
	res := domain.ProbeResult{TargetID: 4, Name: "api", URL: "https://a.example", Method: domain.MethodGet,
		Success: true, StatusCode: 200, ElapsedMS: 120, Response: `{"ok":true}`}

	require.NoError(t, rec.Record(ctx, tgt, res, "run-1"))

	logs, err := store.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	l := logs[0]
	require.Equal(t, domain.TargetID(4), l.TargetID)
	require.Equal(t, "prod", l.Environment)
	require.True(t, l.Success)
	require.Equal(t, int64(120), l.ElapsedMS)
	require.Equal(t, `{"ok":true}`, l.ResponseBody)
	require.WithinDuration(t, time.Now(), l.ExecutedAt, 5*time.Second)
}

func TestRecorder_FailedProbeIsRecorded(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := New(store, "prod", zap.NewNop())

	res := domain.ProbeResult{Name: "db", ErrorMessage: "connection refused", ElapsedMS: 15}
	require.NoError(t, rec.Record(ctx, domain.Target{ID: 9, Name: "db"}, res, "run-2"))

	logs, _ := store.ByRun(ctx, "run-2")
	require.Len(t, logs, 1)
	require.False(t, logs[0].Success)
	require.Equal(t, domain.TargetID(9), logs[0].TargetID)
	require.Equal(t, "connection refused", logs[0].ErrorMessage)
}

func TestRecorder_StoreErrorIsLoggedAndReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rec := New(failingLogs{memory.New()}, "prod", zap.New(core))

	err := rec.Record(context.Background(), domain.Target{Name: "api"}, domain.ProbeResult{}, "run-3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.Equal(t, 1, logs.FilterMessage("record_error").Len())
}

func TestRecorder_NilStoreIsNoop(t *testing.T) {
	require.NoError(t, New(nil, "", nil).Record(context.Background(), domain.Target{}, domain.ProbeResult{}, "r"))
}
