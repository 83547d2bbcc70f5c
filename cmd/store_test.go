package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	tmpDir := t.TempDir()
	dsn := filepath.Join(tmpDir, "test.db")

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: dsn,
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	// An empty DatabaseURL falls back to "audit.db" in the working directory.
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: "",
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "audit.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_PostgresBadURL(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "postgres",
			DatabaseURL: "postgres://%zz",
		},
	}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: parse config")
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver: "mysql",
		},
	}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitAudit_MigratesStore(t *testing.T) {
	cfg = testConfig(t)

	env, err := initAudit(context.Background())
	require.NoError(t, err)
	defer env.Close()

	locals, err := env.Service.ListLocals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locals)
}

func TestInitAudit_BadStrategy(t *testing.T) {
	cfg = testConfig(t)
	cfg.Scoring.Strategy = "coin-flip"

	env, err := initAudit(context.Background())
	assert.Nil(t, env)
	assert.Error(t, err)
}

func TestNewService_MistralWithoutKey(t *testing.T) {
	cfg = testConfig(t)
	cfg.Extract.OCR.Provider = "mistral"

	_, err := newService(nil)
	assert.Error(t, err)
}

// testConfig returns a config backed by a fresh SQLite file that scores
// by percentages, so no command reaches an AI provider.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env: "test",
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "audit.db"),
		},
		AI:      config.AIConfig{Provider: "deepseek", TimeoutSecs: 1},
		Scoring: config.ScoringConfig{Strategy: "percentage"},
		Extract: config.ExtractConfig{
			TempDir: t.TempDir(),
			OCR:     config.OCRConfig{Provider: "local", PdfToTextPath: "pdftotext"},
		},
		Batch: config.BatchConfig{MaxConcurrentReports: 2},
	}
}
