// Package ocr turns PDF reports into plain text.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
)

// Extractor extracts the text of a PDF report.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor builds the extractor named by cfg.Provider:
//
//	local    pdftotext only
//	mistral  Mistral OCR only
//	auto     pdftotext, then Mistral OCR for PDFs without a text layer
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral", "auto":
		if cfg.MistralKey == "" {
			return nil, eris.Errorf("ocr: %s provider requires mistral_api_key", cfg.Provider)
		}
		m := NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
		if cfg.Provider == "mistral" {
			return m, nil
		}
		return &ScannedFallback{Text: NewPdfToText(cfg.PdfToTextPath), OCR: m}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// ScannedFallback reads the text layer first and only sends the file to
// OCR when the layer is missing, as with photographed count sheets.
type ScannedFallback struct {
	Text Extractor
	OCR  Extractor
}

// ExtractText implements Extractor. An error from the text layer reader is
// returned as is; OCR is not a recovery path for unreadable files.
func (s *ScannedFallback) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	text, err := s.Text.ExtractText(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	zap.L().Info("ocr: no text layer, running OCR", zap.String("path", pdfPath))
	return s.OCR.ExtractText(ctx, pdfPath)
}

// joinPages drops blank pages and separates the rest with a blank line.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
