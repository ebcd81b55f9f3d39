package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthbatch/internal/domain"
)

func ok(name string, ms int64) domain.ProbeResult {
	return domain.ProbeResult{Name: name, Success: true, StatusCode: 200, ElapsedMS: ms}
}

func fail(name string, ms int64) domain.ProbeResult {
	return domain.ProbeResult{Name: name, ErrorMessage: "connection refused", ElapsedMS: ms}
}

func TestClassify_AllHealthy(t *testing.T) {
	sum, failed, slow := Classify([]domain.ProbeResult{ok("A", 120), ok("B", 80)}, 1000*time.Millisecond)

	require.Equal(t, 2, sum.Total)
	require.Equal(t, 2, sum.Success)
	require.Zero(t, sum.Failure)
	require.Zero(t, sum.Slow)
	require.Equal(t, 100.0, sum.AverageLatencyMS)
	require.Empty(t, failed)
	require.Empty(t, slow)
}

func TestClassify_OneFailure(t *testing.T) {
	sum, failed, slow := Classify([]domain.ProbeResult{ok("A", 120), fail("B", 15)}, time.Second)

	require.Equal(t, 1, sum.Success)
	require.Equal(t, 1, sum.Failure)
	require.Equal(t, 120.0, sum.AverageLatencyMS)
	require.Len(t, failed, 1)
	require.Equal(t, "B", failed[0].Name)
	require.Empty(t, slow)
}

func TestClassify_SlowIsStrict(t *testing.T) {
	results := []domain.ProbeResult{ok("A", 1500), ok("B", 1000), ok("C", 999)}
	sum, failed, slow := Classify(results, time.Second)

	require.Equal(t, 1, sum.Slow)
	require.Len(t, slow, 1)
	require.Equal(t, "A", slow[0].Name)
	require.Empty(t, failed)
	require.Equal(t, int64(1000), sum.ThresholdMS)
}

func TestClassify_FailedAreNeverSlow(t *testing.T) {
	sum, failed, slow := Classify([]domain.ProbeResult{fail("A", 5000)}, time.Second)

	require.Equal(t, 1, sum.Failure)
	require.Zero(t, sum.Slow)
	require.Len(t, failed, 1)
	require.Empty(t, slow)
	require.Zero(t, sum.AverageLatencyMS)
}

func TestClassify_Empty(t *testing.T) {
	sum, failed, slow := Classify(nil, time.Second)

	require.Equal(t, domain.RunSummary{ThresholdMS: 1000}, sum)
	require.Empty(t, failed)
	require.Empty(t, slow)
}

func TestClassify_Invariants(t *testing.T) {
	results := []domain.ProbeResult{
		ok("A", 10), ok("B", 2000), fail("C", 1), ok("D", 3000), fail("E", 9000),
	}
	sum, failed, slow := Classify(results, time.Second)

	require.Equal(t, sum.Total, sum.Success+sum.Failure)
	require.LessOrEqual(t, sum.Slow, sum.Success)
	require.Len(t, failed, sum.Failure)
	require.Len(t, slow, sum.Slow)
	require.InDelta(t, (10.0+2000+3000)/3, sum.AverageLatencyMS, 1e-9)
}
