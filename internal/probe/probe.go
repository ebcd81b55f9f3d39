package probe

import (
	"context"

	"github.com/hamed0406/healthbatch/internal/domain"
)

// Prober performs a single probe of a target. Failures are reported inside
// the result, never as a panic or error return.
type Prober interface {
	Probe(ctx context.Context, t domain.Target) domain.ProbeResult
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, t domain.Target) domain.ProbeResult

func (f ProberFunc) Probe(ctx context.Context, t domain.Target) domain.ProbeResult {
	return f(ctx, t)
}
