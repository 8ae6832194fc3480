package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPListenAddr string
	DatabaseURL    string

	MCPBaseURL     string
	MCPAPIKey      string
	MCPTimeout     time.Duration
	MCPRetries     int
	CatalogRefresh time.Duration
	CatalogTTL     time.Duration

	OpenAIAPIBase string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAITimeout time.Duration
	PromptPath    string

	HistoryLimit int
	PendingTTL   time.Duration

	MetricsNamespace string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
}

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getenvDefault("APP_ENV", "development"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:   getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		MCPBaseURL:       getenvDefault("MCP_BASE_URL", "http://localhost:8090"),
		MCPAPIKey:        trimmedEnv("MCP_API_KEY"),
		OpenAIAPIBase:    getenvDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
		OpenAIAPIKey:     trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:      getenvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		PromptPath:       getenvDefault("SYSTEM_PROMPT_PATH", "prompts/system.txt"),
		MetricsNamespace: getenvDefault("METRICS_NAMESPACE", "pescheria_bot"),
		RedisAddr:        getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    trimmedEnv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.MCPTimeout, err = durationEnv("MCP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.OpenAITimeout, err = durationEnv("OPENAI_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.CatalogRefresh, err = durationEnv("CATALOG_REFRESH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.CatalogTTL, err = durationEnv("CATALOG_CACHE_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.PendingTTL, err = durationEnv("PENDING_REF_TTL", "10m"); err != nil {
		return nil, err
	}

	if cfg.MCPRetries, err = intEnv("MCP_RETRIES", 1); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = intEnv("HISTORY_LIMIT", 12); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MCPAPIKey == "" {
		return nil, fmt.Errorf("MCP_API_KEY is required")
	}

	cfg.MCPBaseURL = strings.TrimRight(cfg.MCPBaseURL, "/")

	return cfg, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	raw := getenvDefault(key, fallback)
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return dur, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(trimmedEnv(key))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return val, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
