package scoring

import (
	"fmt"
	"strings"
)

// SystemPrompt asks the provider for a JSON-only answer.
const SystemPrompt = "Eres un analista de riesgos de inventario. Debes devolver la respuesta únicamente en formato JSON válido, sin texto adicional."

// BuildPrompt embeds the criteria table, the report text verbatim and the
// required output schema.
func BuildPrompt(reportText string) string {
	cs := Criteria()

	var b strings.Builder
	b.WriteString("Analiza el siguiente informe de inventario y genera la puntuación total y por criterio. ")
	b.WriteString("El puntaje debe basarse en los pesos indicados.\n\n")

	b.WriteString("### CRITERIOS DE PUNTUACIÓN:\n")
	for i, c := range cs {
		fmt.Fprintf(&b, "%d. %s (Peso: %d puntos) - %s\n", i+1, c.Name, c.Weight, c.Description)
	}

	b.WriteString("\n### TEXTO DEL INFORME A ANALIZAR:\n\n")
	b.WriteString(reportText)
	b.WriteString("\n\n### ESQUEMA DE SALIDA (JSON REQUERIDO):\n")
	b.WriteString("{\n")
	b.WriteString("  \"local_name\": \"[Nombre del local extraído del informe]\",\n")
	b.WriteString("  \"total_score\": [Puntuación total de 0 a 100],\n")
	b.WriteString("  \"criteria_scores\": [\n")
	for i, c := range cs {
		b.WriteString("    {\n")
		fmt.Fprintf(&b, "      \"criterion\": %q,\n", c.Name)
		fmt.Fprintf(&b, "      \"weight\": %d,\n", c.Weight)
		fmt.Fprintf(&b, "      \"score\": [Puntuación asignada, de 0 a %d],\n", c.Weight)
		b.WriteString("      \"justification\": \"[Breve justificación de la puntuación asignada]\"\n")
		if i < len(cs)-1 {
			b.WriteString("    },\n")
		} else {
			b.WriteString("    }\n")
		}
	}
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")
	b.WriteString("Devuelve SOLO el JSON, sin texto adicional antes o después.")

	return b.String()
}
