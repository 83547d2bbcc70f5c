package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText reads the embedded text layer with poppler's pdftotext.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText. An empty binPath resolves pdftotext on PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText returns the text of every non-blank page in order. Layout mode
// keeps count tables in columns; trailing padding is trimmed from each line.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", pdfPath, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, strings.TrimSpace(stderr.String()))
	}

	// pdftotext ends every page with a form feed.
	pages := strings.Split(stdout.String(), "\f")
	for i, page := range pages {
		lines := strings.Split(page, "\n")
		for j, line := range lines {
			lines[j] = strings.TrimRight(line, " \t\r")
		}
		pages[i] = strings.Join(lines, "\n")
	}
	return joinPages(pages), nil
}
