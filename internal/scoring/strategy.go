package scoring

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
)

// Scorer is implemented by every scoring strategy.
type Scorer interface {
	ScoreReport(ctx context.Context, reportText string) Response
}

// Strategy names accepted by NewScorer.
const (
	StrategyOrchestrator = "orchestrator"
	StrategyPercentage   = "percentage"
)

var (
	_ Scorer = (*Orchestrator)(nil)
	_ Scorer = PercentageScorer{}
)

// NewScorer builds the configured scoring strategy. An empty strategy
// selects the orchestrator.
func NewScorer(cfg config.ScoringConfig, ai config.AIConfig, opts ...Option) (Scorer, error) {
	switch cfg.Strategy {
	case "", StrategyOrchestrator:
		return NewOrchestrator(ai, opts...)
	case StrategyPercentage:
		return PercentageScorer{}, nil
	default:
		return nil, eris.Errorf("scoring: unknown strategy %q", cfg.Strategy)
	}
}
