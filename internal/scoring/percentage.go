package scoring

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// percentageRule locates the percentage reported for one criterion.
// Loss rules read the figure as a loss rate, so the criterion earns
// 100 - pct and an absent figure means no loss.
type percentageRule struct {
	key     string
	pattern *regexp.Regexp
	loss    bool
}

// A label, up to 40 non-digit characters (": ", " de ", ...), then a number and %.
func labelPattern(labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + labels + `)[^\d%\n]{0,40}?(\d{1,3}(?:[.,]\d+)?)\s*%`)
}

var percentageRules = []percentageRule{
	{key: KeyInventoryAccuracy, pattern: labelPattern(`exactitud`)},
	{key: KeyMissingLoss, pattern: labelPattern(`faltantes|p[ée]rdidas`), loss: true},
	{key: KeyProcedureCompliance, pattern: labelPattern(`cumplimiento|procedimientos`)},
	{key: KeyOrganization, pattern: labelPattern(`organizaci[oó]n|limpieza`)},
	{key: KeyExpiredDamaged, pattern: labelPattern(`vencidos|da[ñn]ados`), loss: true},
	{key: KeyReportClarity, pattern: labelPattern(`claridad`)},
}

var hundred = decimal.NewFromInt(100)

// PercentageScorer scores reports that state explicit per-criterion
// percentages, such as "exactitud: 95%, faltantes: 2%". It does not call
// any provider.
type PercentageScorer struct{}

// ScoreReport implements the report scorer contract. It never fails.
func (PercentageScorer) ScoreReport(_ context.Context, text string) Response {
	return ScoreByPercentages(text)
}

// ScoreByPercentages extracts per-criterion percentages from text and
// weighs them into a total rounded to two decimals.
func ScoreByPercentages(text string) Response {
	rules := make(map[string]percentageRule, len(percentageRules))
	for _, r := range percentageRules {
		rules[r.key] = r
	}

	cs := Criteria()
	scores := make([]CriterionScore, 0, len(cs))
	total := decimal.Zero

	for _, c := range cs {
		rule := rules[c.Key]
		pct, found := findPercentage(rule.pattern, text)

		achieved := hundred
		if found {
			achieved = pct
			if rule.loss {
				achieved = hundred.Sub(pct)
			}
		}

		contribution := achieved.Mul(decimal.NewFromInt(int64(c.Weight))).Div(hundred).Round(2)
		total = total.Add(contribution)

		score, _ := contribution.Float64()
		scores = append(scores, CriterionScore{
			Criterion:     c.Name,
			Weight:        c.Weight,
			Score:         score,
			Justification: percentageJustification(pct, found, rule.loss),
		})
	}

	totalScore, _ := total.Round(2).Float64()
	return Response{
		Success: true,
		Source:  SourcePercentage,
		Result: &Result{
			LocalName:      UnknownLocal,
			TotalScore:     totalScore,
			CriteriaScores: scores,
		},
	}
}

// findPercentage returns the first percentage matched by pattern, clamped
// to [0, 100].
func findPercentage(pattern *regexp.Regexp, text string) (decimal.Decimal, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	if d.GreaterThan(hundred) {
		d = hundred
	}
	return d, true
}

func percentageJustification(pct decimal.Decimal, found, loss bool) string {
	switch {
	case !found && loss:
		return "Sin porcentaje informado; se asume 0% de pérdida"
	case !found:
		return "Sin porcentaje informado; se asume 100%"
	case loss:
		return fmt.Sprintf("Pérdida informada de %s%%", pct.String())
	default:
		return fmt.Sprintf("Porcentaje informado de %s%%", pct.String())
	}
}
