package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/probe"
	"github.com/hamed0406/healthbatch/internal/repo/memory"
)

func TestParseSchedule(t *testing.T) {
	every, sched, err := ParseSchedule("5m")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, every)
	require.Nil(t, sched)

	_, sched, err = ParseSchedule("0 */5 * * * *")
	require.NoError(t, err)
	require.NotNil(t, sched)
	from := time.Date(2025, 8, 18, 12, 1, 30, 0, time.UTC)
	require.Equal(t, time.Date(2025, 8, 18, 12, 5, 0, 0, time.UTC), sched.Next(from))

	_, sched, err = ParseSchedule("*/10 * * * *")
	require.NoError(t, err)
	require.NotNil(t, sched)

	_, _, err = ParseSchedule("every tuesday")
	require.Error(t, err)
	_, _, err = ParseSchedule("")
	require.Error(t, err)
	_, _, err = ParseSchedule("-1s")
	require.Error(t, err)
}

func TestRunner_RunWithInterval(t *testing.T) {
	store := memory.New()
	seed(t, store, "A")
	var calls atomic.Int32
	r := newTestRunner(store, scripted(nil, &calls), &fakeAlerts{}, Config{Schedule: "20ms", RunOnStart: true})

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	require.GreaterOrEqual(t, calls.Load(), int32(2))
	require.NotNil(t, r.LastRun())
}

func TestRunner_RunDisabled(t *testing.T) {
	var calls atomic.Int32
	r := newTestRunner(memory.New(), scripted(nil, &calls), &fakeAlerts{}, Config{Schedule: "0s"})
	require.NoError(t, r.Run(context.Background()))
	require.Zero(t, calls.Load())
}

func TestRunner_RunCronStopsOnCancel(t *testing.T) {
	store := memory.New()
	seed(t, store, "A")
	var calls atomic.Int32
	r := newTestRunner(store, scripted(nil, &calls), &fakeAlerts{}, Config{Schedule: "@every 1h", RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.LastRun() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunner_RunCronWaitsForStartRun(t *testing.T) {
	store := memory.New()
	seed(t, store, "A")
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := probe.ProberFunc(func(_ context.Context, tg domain.Target) domain.ProbeResult {
		close(started)
		<-release
		return domain.ProbeResult{TargetID: tg.ID, Name: tg.Name, Success: true, StatusCode: 200}
	})
	r := newTestRunner(store, blocking, &fakeAlerts{}, Config{Schedule: "@every 1h", RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	<-started
	cancel()
	select {
	case <-errc:
		t.Fatal("Run returned while the start run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after the start run finished")
	}
	require.NotNil(t, r.LastRun())
}

func TestRunner_RunInvalidSchedule(t *testing.T) {
	r := NewRunner(zap.NewNop(), memory.New(), nil, nil, nil, Config{Schedule: "nope"})
	require.Error(t, r.Run(context.Background()))
}

func TestRetentionWorker_PurgeOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, &domain.ExecutionLog{Name: "old", RunID: "r", ExecutedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Append(ctx, &domain.ExecutionLog{Name: "new", RunID: "r", ExecutedAt: now.Add(-time.Hour)}))

	w := NewRetentionWorker(store, zap.NewNop(), 24*time.Hour, time.Hour)
	require.Equal(t, int64(1), w.PurgeOnce(ctx))

	left, _ := store.ByRun(ctx, "r")
	require.Len(t, left, 1)
	require.Equal(t, "new", left[0].Name)
}

func TestRetentionWorker_Disabled(t *testing.T) {
	w := NewRetentionWorker(memory.New(), nil, 0, 0)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker should return immediately")
	}
}
