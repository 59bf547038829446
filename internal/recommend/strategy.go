// Package recommend turns rule-engine results into persisted
// recommendations. A Strategy produces the narrative (reasons and risks);
// the deterministic strategy is always available and always correct, the
// OpenAI-backed strategy is an optional upgrade that falls back to the
// deterministic one on any failure.
package recommend

import (
	"context"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/rules"
)

// NarrativeInput is everything a strategy may draw on. The action is already
// decided by the rule engine; strategies explain it, they do not change it.
type NarrativeInput struct {
	Audience  *domain.Audience
	Result    *rules.Result
	Window    domain.MetricWindow
	Benchmark domain.AccountBenchmark
	Trend     domain.TrendMetrics
}

// Narrative is a strategy's output.
type Narrative struct {
	Action  domain.Action
	Reasons []string
	Risks   []string
}

// Strategy produces the narrative for one decision.
type Strategy interface {
	Explain(ctx context.Context, in NarrativeInput) (*Narrative, error)
}
