package scoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
	"github.com/drususdark/audit-inventory-mvp/internal/llm"
	"github.com/drususdark/audit-inventory-mvp/internal/resilience"
)

const defaultAITimeout = 60 * time.Second

// ProviderFactory builds the provider used for one scoring attempt.
type ProviderFactory func(name llm.ProviderName) (llm.Provider, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProviderFactory replaces the factory that builds providers.
func WithProviderFactory(f ProviderFactory) Option {
	return func(o *Orchestrator) {
		o.newProvider = f
	}
}

// WithTimeout bounds each AI attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithBreaker guards provider calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *Orchestrator) {
		o.breaker = b
	}
}

// Orchestrator makes one AI scoring attempt and falls back to the keyword
// heuristic on any failure. It is safe for concurrent use.
type Orchestrator struct {
	provider    llm.ProviderName
	newProvider ProviderFactory
	timeout     time.Duration
	breaker     *resilience.Breaker
}

// NewOrchestrator creates an Orchestrator for the configured provider.
// Credentials are checked on every attempt, so a missing key degrades to
// the heuristic instead of failing construction.
func NewOrchestrator(cfg config.AIConfig, opts ...Option) (*Orchestrator, error) {
	name, err := llm.ParseProviderName(cfg.Provider)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		provider: name,
		newProvider: func(n llm.ProviderName) (llm.Provider, error) {
			return llm.New(n, cfg)
		},
		timeout: defaultAITimeout,
	}
	if cfg.TimeoutSecs > 0 {
		o.timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	if cfg.BreakerThreshold > 0 {
		o.breaker = resilience.NewBreaker(resilience.Settings{
			Threshold: cfg.BreakerThreshold,
			CoolDown:  time.Duration(cfg.BreakerCoolDownSecs) * time.Second,
			OnChange: func(from, to resilience.State) {
				zap.L().Warn("scoring: provider circuit changed",
					zap.String("provider", string(name)),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Provider returns the selected provider name.
func (o *Orchestrator) Provider() llm.ProviderName {
	return o.provider
}

// ScoreWithAI sends the report to the selected provider once and parses
// the answer. Errors are *llm.ConfigurationError, *llm.ProviderError,
// *ParseError, resilience.ErrOpen or a transport error.
func (o *Orchestrator) ScoreWithAI(ctx context.Context, reportText string) (*Result, error) {
	p, err := o.newProvider(o.provider)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System: SystemPrompt,
		Prompt: BuildPrompt(reportText),
	}
	var content string
	call := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		content, err = p.Complete(ctx, req)
		return err
	}

	if o.breaker != nil {
		err = o.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	return ParseResult(p.Name(), content)
}

// ScoreReport always produces a score: the AI result when the attempt
// succeeds, otherwise the heuristic one.
func (o *Orchestrator) ScoreReport(ctx context.Context, reportText string) Response {
	start := time.Now()
	result, err := o.ScoreWithAI(ctx, reportText)
	if err != nil {
		zap.L().Warn("scoring: AI attempt failed, using heuristic fallback",
			zap.String("provider", string(o.provider)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		resp := ScoreHeuristically(reportText)
		resp.Error = err.Error()
		return resp
	}

	zap.L().Info("scoring: AI score computed",
		zap.String("provider", string(o.provider)),
		zap.Float64("total_score", result.TotalScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Response{
		Success:  true,
		Result:   result,
		Source:   SourceAI,
		Provider: string(o.provider),
	}
}
