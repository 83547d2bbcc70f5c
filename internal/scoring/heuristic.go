package scoring

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NegativeKeywords lower the heuristic score by 10 points per occurrence.
var NegativeKeywords = []string{
	"faltantes", "aumentó", "vencidos", "errores", "problemas",
	"crítico", "desordenada", "suciedad", "pérdidas",
}

const (
	heuristicPenalty       = 10
	heuristicFloor         = 40
	heuristicJustification = "Puntuación calculada mediante análisis heurístico (fallback)"

	// UnknownLocal is reported when the report text names no store.
	UnknownLocal = "Desconocido"
)

// CountNegativeKeywords counts case-insensitive substring occurrences of
// every negative keyword in text.
func CountNegativeKeywords(text string) int {
	// Casers keep state; build one per call. NFC so that decomposed accents
	// match the keyword spelling.
	folded := cases.Lower(language.Spanish).String(norm.NFC.String(text))
	n := 0
	for _, kw := range NegativeKeywords {
		n += strings.Count(folded, kw)
	}
	return n
}

// ScoreHeuristically scores text by counting negative keywords. It never fails.
func ScoreHeuristically(text string) Response {
	base := 100 - heuristicPenalty*CountNegativeKeywords(text)
	if base < heuristicFloor {
		base = heuristicFloor
	}

	cs := Criteria()
	scores := make([]CriterionScore, len(cs))
	for i, c := range cs {
		scores[i] = CriterionScore{
			Criterion:     c.Name,
			Weight:        c.Weight,
			Score:         math.Round(float64(base*c.Weight) / 100),
			Justification: heuristicJustification,
		}
	}

	return Response{
		Success: true,
		Source:  SourceHeuristicFallback,
		Result: &Result{
			LocalName:      UnknownLocal,
			TotalScore:     float64(base),
			CriteriaScores: scores,
		},
	}
}
