// Package scoring computes the 0-100 quality score of an inventory report,
// either through an AI provider or through deterministic fallbacks.
package scoring

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Criterion is one weighted dimension of the audit score.
type Criterion struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Weight      int    `json:"weight" yaml:"weight"`
	Description string `json:"description" yaml:"description"`
}

// Criterion keys.
const (
	KeyInventoryAccuracy   = "inventory_accuracy"
	KeyMissingLoss         = "missing_loss"
	KeyProcedureCompliance = "procedure_compliance"
	KeyOrganization        = "organization_cleanliness"
	KeyExpiredDamaged      = "expired_damaged"
	KeyReportClarity       = "report_clarity"
)

// criteria is ordered; prompts and breakdowns follow this order.
var criteria = [...]Criterion{
	{
		Key:         KeyInventoryAccuracy,
		Name:        "Exactitud de Inventario",
		Weight:      30,
		Description: "Mide la correspondencia entre el físico y el sistema",
	},
	{
		Key:         KeyMissingLoss,
		Name:        "Faltantes y Pérdidas",
		Weight:      25,
		Description: "Evalúa las pérdidas directas (valor de faltantes)",
	},
	{
		Key:         KeyProcedureCompliance,
		Name:        "Cumplimiento de Procedimientos",
		Weight:      20,
		Description: "Evalúa el seguimiento de reglas operacionales",
	},
	{
		Key:         KeyOrganization,
		Name:        "Organización y Limpieza",
		Weight:      10,
		Description: "Impacta la eficiencia operativa y la imagen del local",
	},
	{
		Key:         KeyExpiredDamaged,
		Name:        "Gestión de Vencidos/Dañados",
		Weight:      10,
		Description: "Mide la prevención de pérdidas por productos no vendibles",
	},
	{
		Key:         KeyReportClarity,
		Name:        "Claridad y Estructura del Informe",
		Weight:      5,
		Description: "Evalúa la calidad del documento que se analiza",
	},
}

// Criteria returns a copy of the criteria table in display order.
func Criteria() []Criterion {
	out := make([]Criterion, len(criteria))
	copy(out, criteria[:])
	return out
}

// WeightSum returns the sum of all criterion weights.
func WeightSum(cs []Criterion) int {
	sum := 0
	for _, c := range cs {
		sum += c.Weight
	}
	return sum
}

// ValidateCriteria checks that a criteria table is internally consistent.
func ValidateCriteria(cs []Criterion) error {
	var errs []string

	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		if c.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be > 0", c.Key))
		}
		if seen[c.Key] {
			errs = append(errs, fmt.Sprintf("duplicate criterion %s", c.Key))
		}
		seen[c.Key] = true
	}

	if sum := WeightSum(cs); sum != 100 {
		errs = append(errs, fmt.Sprintf("weights sum to %d, want 100", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid criteria: %s", strings.Join(errs, "; "))
	}
	return nil
}
