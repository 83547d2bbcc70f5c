package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "audit.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 5.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 10, cfg.Server.RateLimitBurst)
	assert.Equal(t, 30, cfg.Server.RankingCacheSecs)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentReports)
	assert.Equal(t, "orchestrator", cfg.Scoring.Strategy)
	assert.Equal(t, "deepseek", cfg.AI.Provider)
	assert.Equal(t, 60, cfg.AI.TimeoutSecs)
	assert.Zero(t, cfg.AI.BreakerThreshold)
	assert.Equal(t, 60, cfg.AI.BreakerCoolDownSecs)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.AI.DeepSeek.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.AI.DeepSeek.Model)
	assert.Equal(t, "llama-3.1-70b-versatile", cfg.AI.Groq.Model)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.AI.Gemini.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.AI.Anthropic.Model)
	assert.Equal(t, 50, cfg.Extract.MaxUploadMB)
	assert.Equal(t, "local", cfg.Extract.OCR.Provider)
	assert.Equal(t, "pdftotext", cfg.Extract.OCR.PdfToTextPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/audit
log:
  level: debug
  format: console
server:
  port: 9090
ai:
  provider: gemini
scoring:
  strategy: percentage
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/audit", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "percentage", cfg.Scoring.Strategy)
	// Defaults still apply for unset values
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.AI.Gemini.Model)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("AUDIT_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AI_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("DATABASE_URL", "postgres://db/audit")
	t.Setenv("NODE_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.AI.Provider)
	assert.Equal(t, "gsk-test", cfg.AI.Groq.Key)
	assert.Equal(t, "postgres://db/audit", cfg.Store.DatabaseURL)
	assert.Equal(t, "production", cfg.Env)
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AI_PROVIDER", "groq")
	t.Setenv("AUDIT_AI_PROVIDER", "openai")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", cfg.AI.OpenAI.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func validConfig() *Config {
	return &Config{
		Store:   StoreConfig{Driver: "sqlite"},
		AI:      AIConfig{Provider: "deepseek", TimeoutSecs: 60},
		Scoring: ScoringConfig{Strategy: "orchestrator"},
		Extract: ExtractConfig{OCR: OCRConfig{Provider: "local"}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "provider case insensitive", mutate: func(c *Config) { c.AI.Provider = "Gemini" }},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "mistral" }, wantErr: "ai.provider"},
		{name: "unknown strategy", mutate: func(c *Config) { c.Scoring.Strategy = "random" }, wantErr: "scoring.strategy"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
		{name: "unknown ocr", mutate: func(c *Config) { c.Extract.OCR.Provider = "tesseract" }, wantErr: "extract.ocr.provider"},
		{name: "zero timeout", mutate: func(c *Config) { c.AI.TimeoutSecs = 0 }, wantErr: "ai.timeout_secs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	c := validConfig()
	c.AI.Provider = "x"
	c.Store.Driver = "y"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.provider")
	assert.Contains(t, err.Error(), "store.driver")
}
