package extract

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const cellSeparator = " | "

// ReadWorkbookText renders every sheet of an XLSX workbook in workbook
// order: a "=== HOJA: <name> ===" header, then one line per non-blank row
// with cells joined by " | ".
func ReadWorkbookText(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrap(err, "xlsx: open file")
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		fmt.Fprintf(&b, "\n=== HOJA: %s ===\n\n", sheet.Name)
		for _, row := range sheet.Rows {
			cells := rowToStrings(row)
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, cellSeparator))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// rowToStrings returns the cell values up to the last non-blank cell, or
// nil for a blank row.
func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	last := -1
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
		if strings.TrimSpace(cells[j]) != "" {
			last = j
		}
	}
	return cells[:last+1]
}
