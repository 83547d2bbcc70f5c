package scoring

import (
	"fmt"
	"strings"
)

// Source tells which strategy produced a score.
type Source string

const (
	SourceAI                Source = "AI"
	SourceHeuristicFallback Source = "HEURISTIC_FALLBACK"
	SourcePercentage        Source = "PERCENTAGE"
)

// CriterionScore is the score one criterion received. Score lies in [0, Weight].
type CriterionScore struct {
	Criterion     string  `json:"criterion"`
	Weight        int     `json:"weight"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// Result is a complete scoring of one report. The JSON shape is the one
// AI providers are instructed to emit.
type Result struct {
	LocalName      string           `json:"local_name"`
	TotalScore     float64          `json:"total_score"`
	CriteriaScores []CriterionScore `json:"criteria_scores"`
}

// Validate checks score bounds. Criterion scores are bounded by the weight
// in the criteria table, not by the weight echoed in the result.
func (r *Result) Validate() error {
	if r.TotalScore < 0 || r.TotalScore > 100 {
		return fmt.Errorf("total_score %.2f out of range [0, 100]", r.TotalScore)
	}
	for _, cs := range r.CriteriaScores {
		weight, ok := weightOf(cs.Criterion)
		if !ok {
			return fmt.Errorf("unknown criterion %q", cs.Criterion)
		}
		if cs.Score < 0 || cs.Score > float64(weight) {
			return fmt.Errorf("criterion %q score %.2f out of range [0, %d]", cs.Criterion, cs.Score, weight)
		}
	}
	return nil
}

func weightOf(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for _, c := range criteria {
		if strings.EqualFold(c.Name, name) {
			return c.Weight, true
		}
	}
	return 0, false
}

// Response is what every scoring strategy returns to callers. Success is
// always true for the strategies in this package; Error carries the reason
// the AI attempt was abandoned when a fallback produced the result.
type Response struct {
	Success  bool    `json:"success"`
	Result   *Result `json:"result,omitempty"`
	Source   Source  `json:"source"`
	Provider string  `json:"provider,omitempty"`
	Error    string  `json:"error,omitempty"`
}
