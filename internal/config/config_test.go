package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"ORACLE_PROVIDER", "STORE", "LANGUAGE", "LOG_LEVEL", "ORACLE_RATE_PER_MINUTE", "ORACLE_TIMEOUT", "SAVE_DIR", "OFFLINE_REVEAL_KEYWORDS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "offline", cfg.OracleProvider)
	assert.Equal(t, "file", cfg.Store)
	assert.Equal(t, ".saves", cfg.SaveDir)
	assert.Equal(t, 60*time.Second, cfg.OracleTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, models.LanguageEN, cfg.PuzzleLanguage())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ORACLE_PROVIDER", "deepseek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("ORACLE_TIMEOUT", "5s")
	t.Setenv("ORACLE_RATE_PER_MINUTE", "30")
	t.Setenv("OFFLINE_REVEAL_KEYWORDS", "answer,truth")
	t.Setenv("STORE", "sqlite")
	t.Setenv("LANGUAGE", "zh")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, models.LanguageZH, cfg.PuzzleLanguage())

	oc := cfg.Oracle()
	assert.Equal(t, oracle.ProviderDeepSeek, oc.Provider)
	assert.Equal(t, "sk-test", oc.DeepSeekAPIKey)
	assert.Equal(t, 5*time.Second, oc.Timeout)
	assert.Equal(t, 30, oc.RatePerMinute)
	assert.Equal(t, []string{"answer", "truth"}, oc.RevealKeywords)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown store":    {"STORE", "redis"},
		"unknown language": {"LANGUAGE", "fr"},
		"negative rate":    {"ORACLE_RATE_PER_MINUTE", "-1"},
		"bad timeout":      {"ORACLE_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
