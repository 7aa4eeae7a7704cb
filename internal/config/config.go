package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"picmatch/internal/game"
)

// DefaultSessionTTL is how long an idle session is kept when SESSION_TTL is unset.
const DefaultSessionTTL = 30 * time.Minute

// Config holds all application configuration
type Config struct {
	Port            string
	DataFile        string
	AssetsDir       string
	AdvanceDelay    time.Duration
	SessionTTL      time.Duration
	DefaultLanguage game.Language
	LogLevel        zapcore.Level
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DataFile:  os.Getenv("DATA_FILE"),
		AssetsDir: os.Getenv("ASSETS_DIR"),
	}

	delay, err := time.ParseDuration(getEnv("ADVANCE_DELAY", game.DefaultAdvanceDelay.String()))
	if err != nil {
		return nil, fmt.Errorf("ADVANCE_DELAY: %w", err)
	}
	if delay < 0 {
		return nil, fmt.Errorf("ADVANCE_DELAY must not be negative, got %s", delay)
	}
	cfg.AdvanceDelay = delay

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", DefaultSessionTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("SESSION_TTL must not be negative, got %s", ttl)
	}
	cfg.SessionTTL = ttl

	lang, err := game.ParseLanguage(getEnv("DEFAULT_LANGUAGE", string(game.LangFrench)))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_LANGUAGE: %w", err)
	}
	cfg.DefaultLanguage = lang

	level, err := zapcore.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
