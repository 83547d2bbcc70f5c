package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SaveTemp writes data to a uniquely named file in dir and returns its path.
// An empty dir uses the OS temp directory.
func SaveTemp(dir string, data []byte, ext string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "extract: create temp dir %s", dir)
	}

	ext = strings.TrimPrefix(ext, ".")
	name := "upload_" + uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", eris.Wrapf(err, "extract: write temp file %s", path)
	}
	return path, nil
}

// DeleteTemp removes a temp file. Failures are logged, never returned.
func DeleteTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("extract: delete temp file", zap.String("path", path), zap.Error(err))
	}
}
