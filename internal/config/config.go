package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
)

// Config holds the application configuration.
type Config struct {
	OracleProvider       string        `env:"ORACLE_PROVIDER" envDefault:"offline"`
	GeminiAPIKey         string        `env:"GEMINI_API_KEY"`
	GeminiModel          string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	DeepSeekAPIKey       string        `env:"DEEPSEEK_API_KEY"`
	DeepSeekModel        string        `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
	DeepSeekBaseURL      string        `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	OracleTimeout        time.Duration `env:"ORACLE_TIMEOUT" envDefault:"60s"`
	OracleRatePerMinute  int           `env:"ORACLE_RATE_PER_MINUTE" envDefault:"0"`
	OfflineRevealKeyword []string      `env:"OFFLINE_REVEAL_KEYWORDS" envSeparator:","`

	Store   string `env:"STORE" envDefault:"file"`
	SaveDir string `env:"SAVE_DIR" envDefault:".saves"`
	DBPath  string `env:"DB_PATH" envDefault:".saves/turtlesoup.db"`

	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile  string     `env:"LOG_FILE"`
	Language string     `env:"LANGUAGE" envDefault:"en"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	switch cfg.Store {
	case "memory", "file", "sqlite":
	default:
		return nil, fmt.Errorf("STORE must be memory, file or sqlite, got %q", cfg.Store)
	}
	if _, ok := models.ParseLanguage(cfg.Language); !ok {
		return nil, fmt.Errorf("LANGUAGE %q is not supported", cfg.Language)
	}
	if cfg.OracleRatePerMinute < 0 {
		return nil, fmt.Errorf("ORACLE_RATE_PER_MINUTE must not be negative")
	}
	return &cfg, nil
}

// PuzzleLanguage returns the partition the player browses by default.
func (c *Config) PuzzleLanguage() models.Language {
	lang, _ := models.ParseLanguage(c.Language)
	return lang
}

// Oracle returns the oracle configuration. Credentials are not checked here;
// a strategy without its key reports a configuration error when used.
func (c *Config) Oracle() oracle.Config {
	return oracle.Config{
		Provider:        oracle.Provider(c.OracleProvider),
		GeminiAPIKey:    c.GeminiAPIKey,
		GeminiModel:     c.GeminiModel,
		DeepSeekAPIKey:  c.DeepSeekAPIKey,
		DeepSeekModel:   c.DeepSeekModel,
		DeepSeekBaseURL: c.DeepSeekBaseURL,
		Timeout:         c.OracleTimeout,
		RatePerMinute:   c.OracleRatePerMinute,
		RevealKeywords:  c.OfflineRevealKeyword,
	}
}
