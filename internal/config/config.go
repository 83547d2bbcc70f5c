package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Env     string        `yaml:"env" mapstructure:"env"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	AI      AIConfig      `yaml:"ai" mapstructure:"ai"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AIConfig selects the scoring provider and holds per-provider credentials.
type AIConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Consecutive provider failures that skip AI scoring for BreakerCoolDownSecs.
	// Zero disables the breaker.
	BreakerThreshold    int            `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCoolDownSecs int            `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	DeepSeek            ProviderConfig `yaml:"deepseek" mapstructure:"deepseek"`
	Groq                ProviderConfig `yaml:"groq" mapstructure:"groq"`
	Gemini              ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
	OpenAI              ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic           ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// ProviderConfig holds the credential and endpoint of one AI provider.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ScoringConfig selects the scoring strategy.
type ScoringConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
}

// ExtractConfig configures file text extraction and temporary uploads.
type ExtractConfig struct {
	TempDir     string    `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxUploadMB int       `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	OCR         OCRConfig `yaml:"ocr" mapstructure:"ocr"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS     float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	RankingCacheSecs int      `yaml:"ranking_cache_secs" mapstructure:"ranking_cache_secs"`
}

// BatchConfig configures bulk report imports.
type BatchConfig struct {
	MaxConcurrentReports int `yaml:"max_concurrent_reports" mapstructure:"max_concurrent_reports"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the plain environment variable names
// deployments already export.
var legacyEnv = map[string]string{
	"env":                         "NODE_ENV",
	"store.database_url":          "DATABASE_URL",
	"ai.provider":                 "AI_PROVIDER",
	"ai.deepseek.key":             "DEEPSEEK_API_KEY",
	"ai.groq.key":                 "GROQ_API_KEY",
	"ai.gemini.key":               "GEMINI_API_KEY",
	"ai.openai.key":               "OPENAI_API_KEY",
	"ai.anthropic.key":            "ANTHROPIC_API_KEY",
	"extract.ocr.mistral_api_key": "MISTRAL_API_KEY",
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "AUDIT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "audit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.ranking_cache_secs", 30)
	v.SetDefault("batch.max_concurrent_reports", 4)
	v.SetDefault("scoring.strategy", "orchestrator")
	v.SetDefault("ai.provider", "deepseek")
	v.SetDefault("ai.timeout_secs", 60)
	v.SetDefault("ai.breaker_threshold", 0)
	v.SetDefault("ai.breaker_cooldown_secs", 60)
	v.SetDefault("ai.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.groq.model", "llama-3.1-70b-versatile")
	v.SetDefault("ai.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash-exp")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("extract.temp_dir", os.TempDir())
	v.SetDefault("extract.max_upload_mb", 50)
	v.SetDefault("extract.ocr.provider", "local")
	v.SetDefault("extract.ocr.pdftotext_path", "pdftotext")
	v.SetDefault("extract.ocr.mistral_model", "mistral-ocr-latest")
}

var (
	validProviders  = []string{"deepseek", "groq", "gemini", "openai", "anthropic"}
	validStrategies = []string{"orchestrator", "percentage"}
	validDrivers    = []string{"sqlite", "postgres"}
	validOCR        = []string{"", "local", "mistral", "auto"}
)

// Validate checks that enumerated settings hold known values.
func (c *Config) Validate() error {
	var errs []string

	if !contains(validProviders, strings.ToLower(c.AI.Provider)) {
		errs = append(errs, fmt.Sprintf("ai.provider %q must be one of %s", c.AI.Provider, strings.Join(validProviders, ", ")))
	}
	if !contains(validStrategies, c.Scoring.Strategy) {
		errs = append(errs, fmt.Sprintf("scoring.strategy %q must be one of %s", c.Scoring.Strategy, strings.Join(validStrategies, ", ")))
	}
	if !contains(validDrivers, c.Store.Driver) {
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of %s", c.Store.Driver, strings.Join(validDrivers, ", ")))
	}
	if !contains(validOCR, c.Extract.OCR.Provider) {
		errs = append(errs, fmt.Sprintf("extract.ocr.provider %q is not supported", c.Extract.OCR.Provider))
	}
	if c.AI.TimeoutSecs <= 0 {
		errs = append(errs, "ai.timeout_secs must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
