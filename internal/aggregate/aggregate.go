// Package aggregate classifies the results of one run.
package aggregate

import (
	"time"

	"github.com/hamed0406/healthbatch/internal/domain"
)

// Classify splits results into failed and slow subsets and summarises them.
// A result is slow when it succeeded and took strictly longer than threshold.
// The average latency covers successful probes only and is 0 when none succeeded.
func Classify(results []domain.ProbeResult, threshold time.Duration) (domain.RunSummary, []domain.ProbeResult, []domain.ProbeResult) {
	thresholdMS := threshold.Milliseconds()
	sum := domain.RunSummary{Total: len(results), ThresholdMS: thresholdMS}

	var (
		failed, slow []domain.ProbeResult
		totalMS      int64
	)
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
			continue
		}
		sum.Success++
		totalMS += r.ElapsedMS
		if r.IsSlow(thresholdMS) {
			slow = append(slow, r)
		}
	}
	sum.Failure = len(failed)
	sum.Slow = len(slow)
	if sum.Success > 0 {
		sum.AverageLatencyMS = float64(totalMS) / float64(sum.Success)
	}
	return sum, failed, slow
}
