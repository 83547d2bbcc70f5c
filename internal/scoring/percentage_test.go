package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreFor(t *testing.T, r *Result, criterion string) float64 {
	t.Helper()
	for _, s := range r.CriteriaScores {
		if s.Criterion == criterion {
			return s.Score
		}
	}
	t.Fatalf("criterion %q not found", criterion)
	return 0
}

func TestScoreByPercentages_AccuracyAndMissing(t *testing.T) {
	resp := ScoreByPercentages("exactitud: 95%, faltantes: 2%")

	assert.True(t, resp.Success)
	assert.Equal(t, SourcePercentage, resp.Source)
	require.NotNil(t, resp.Result)

	assert.InDelta(t, 28.5, scoreFor(t, resp.Result, "Exactitud de Inventario"), 0.001)
	assert.InDelta(t, 24.5, scoreFor(t, resp.Result, "Faltantes y Pérdidas"), 0.001)
	assert.InDelta(t, 20, scoreFor(t, resp.Result, "Cumplimiento de Procedimientos"), 0.001)
	assert.InDelta(t, 10, scoreFor(t, resp.Result, "Gestión de Vencidos/Dañados"), 0.001)
	assert.InDelta(t, 98.0, resp.Result.TotalScore, 0.001)
}

func TestScoreByPercentages_NoFigures(t *testing.T) {
	resp := ScoreByPercentages("Informe sin cifras")
	assert.InDelta(t, 100.0, resp.Result.TotalScore, 0.001)
	for _, s := range resp.Result.CriteriaScores {
		assert.InDelta(t, float64(s.Weight), s.Score, 0.001)
	}
}

func TestScoreByPercentages_LabelsAndFormats(t *testing.T) {
	text := `Exactitud de inventario: 90,5 %
Pérdidas del mes: 10%
Cumplimiento 80%
Limpieza: 50%
Productos vencidos 20%
Claridad: 100%`
	resp := ScoreByPercentages(text)
	r := resp.Result

	assert.InDelta(t, 27.15, scoreFor(t, r, "Exactitud de Inventario"), 0.001)
	assert.InDelta(t, 22.5, scoreFor(t, r, "Faltantes y Pérdidas"), 0.001)
	assert.InDelta(t, 16, scoreFor(t, r, "Cumplimiento de Procedimientos"), 0.001)
	assert.InDelta(t, 5, scoreFor(t, r, "Organización y Limpieza"), 0.001)
	assert.InDelta(t, 8, scoreFor(t, r, "Gestión de Vencidos/Dañados"), 0.001)
	assert.InDelta(t, 5, scoreFor(t, r, "Claridad y Estructura del Informe"), 0.001)
	assert.InDelta(t, 83.65, r.TotalScore, 0.001)
	assert.NoError(t, r.Validate())
}

func TestScoreByPercentages_ClampsAbove100(t *testing.T) {
	resp := ScoreByPercentages("exactitud: 150%, faltantes: 300%")
	assert.InDelta(t, 30, scoreFor(t, resp.Result, "Exactitud de Inventario"), 0.001)
	assert.InDelta(t, 0, scoreFor(t, resp.Result, "Faltantes y Pérdidas"), 0.001)
	assert.NoError(t, resp.Result.Validate())
}

func TestScoreByPercentages_TotalRoundedToTwoDecimals(t *testing.T) {
	resp := ScoreByPercentages("exactitud: 33.333%")
	// 33.333 * 30 / 100 = 9.9999 -> 10.00
	assert.InDelta(t, 10.0, scoreFor(t, resp.Result, "Exactitud de Inventario"), 0.0001)
	assert.InDelta(t, 80.0, resp.Result.TotalScore, 0.0001)
}

func TestPercentageScorer_ScoreReport(t *testing.T) {
	var s PercentageScorer
	resp := s.ScoreReport(context.Background(), "exactitud: 95%, faltantes: 2%")
	assert.Equal(t, SourcePercentage, resp.Source)
	assert.InDelta(t, 98.0, resp.Result.TotalScore, 0.001)
}
