// Package extract turns uploaded report files into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/internal/ocr"
)

// FileType is the kind of binary report the extractor accepts.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeExcel FileType = "excel"
)

var (
	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("extract: file does not exist")
	// ErrUnsupportedType is returned for file types other than pdf and excel.
	ErrUnsupportedType = errors.New("extract: unsupported file type")
)

// ExtractionError wraps a failure to read or parse a file of a supported type.
type ExtractionError struct {
	Type FileType
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s %s: %v", e.Type, filepath.Base(e.Path), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsLegacyWorkbook reports whether name is a BIFF .xls workbook. Only the
// OOXML formats (.xlsx, .xlsm) can be read.
func IsLegacyWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xls")
}

// TypeFromFileName maps a file extension to a FileType.
func TypeFromFileName(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".xlsx", ".xlsm":
		return FileTypeExcel, nil
	case ".xls":
		return "", eris.Wrapf(ErrUnsupportedType, "legacy workbook %s, save it as .xlsx", filepath.Base(name))
	default:
		return "", eris.Wrapf(ErrUnsupportedType, "extension %q", filepath.Ext(name))
	}
}

// Extractor reads report files. It never modifies them.
type Extractor struct {
	pdf ocr.Extractor
}

// New creates an Extractor that reads PDFs through pdf.
func New(pdf ocr.Extractor) *Extractor {
	return &Extractor{pdf: pdf}
}

// ExtractText returns the text content of the file at path. Existence is
// checked before the type.
func (e *Extractor) ExtractText(ctx context.Context, path string, fileType FileType) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", eris.Wrapf(ErrNotFound, "path %s", path)
		}
		return "", &ExtractionError{Type: fileType, Path: path, Err: err}
	}

	switch fileType {
	case FileTypePDF:
		text, err := e.pdf.ExtractText(ctx, path)
		if err != nil {
			return "", &ExtractionError{Type: fileType, Path: path, Err: err}
		}
		return text, nil
	case FileTypeExcel:
		text, err := ReadWorkbookText(path)
		if err != nil {
			return "", &ExtractionError{Type: fileType, Path: path, Err: err}
		}
		return text, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedType, "type %q", fileType)
	}
}
