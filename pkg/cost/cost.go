// Package cost defines the cost-transcript-parser collaborator interface
// (spec.md §6). Cost accounting is explicitly scoped as "consumed
// read-only" (§1) — this package turns a transcript.Usage into an
// estimated dollar figure without ever writing back to a transcript.
package cost

import (
	"context"

	"github.com/eltmon/panopticon/pkg/transcript"
)

// Estimator converts token usage into an estimated spend.
type Estimator interface {
	Estimate(ctx context.Context, usage transcript.Usage) (float64, error)
}

// Rate is a per-million-token price for one model identifier.
type Rate struct {
	InputPerMillion  float64
	OutputPerMillion float64
	CacheReadPerM    float64
	CacheWritePerM   float64
}

// TableEstimator estimates cost from a static model→Rate price table. A
// model with no table entry estimates to zero rather than erroring, since
// cost estimation is explicitly a best-effort, read-only convenience.
type TableEstimator struct {
	Rates map[string]Rate
}

// DefaultRates seeds a small table covering the model identifiers the
// retrieval pack's examples mention; callers can supply their own table
// through TableEstimator.Rates.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"claude-opus-4":   {InputPerMillion: 15, OutputPerMillion: 75, CacheReadPerM: 1.5, CacheWritePerM: 18.75},
		"claude-sonnet-4": {InputPerMillion: 3, OutputPerMillion: 15, CacheReadPerM: 0.3, CacheWritePerM: 3.75},
		"claude-haiku-4":  {InputPerMillion: 0.8, OutputPerMillion: 4, CacheReadPerM: 0.08, CacheWritePerM: 1},
	}
}

func (t TableEstimator) Estimate(_ context.Context, usage transcript.Usage) (float64, error) {
	rate, ok := t.Rates[usage.Model]
	if !ok {
		return 0, nil
	}
	const million = 1_000_000
	total := float64(usage.InputTokens)*rate.InputPerMillion/million +
		float64(usage.OutputTokens)*rate.OutputPerMillion/million +
		float64(usage.CacheRead)*rate.CacheReadPerM/million +
		float64(usage.CacheWrite)*rate.CacheWritePerM/million
	return total, nil
}
