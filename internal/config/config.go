// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup
type Config struct {
	Port        string
	Environment string
	APIBaseURL  string
	WebBaseURL  string
	CORSOrigins []string

	LogLevel string
	LogFile  string

	DatabaseDriver string // postgres or sqlite
	DatabaseURL    string

	JWTSecret []byte

	RedisHost     string
	RedisPort     string
	RedisPassword string

	AWSRegion  string
	AWSBucket  string
	CDNBaseURL string

	SESFromEmail     string
	SESFromName      string
	SupportInbox     string
	ElasticsearchURL string

	OTLPEndpoint    string
	TracingSampling float64

	GoogleClientID     string
	GoogleClientSecret string

	ChatFlushInterval time.Duration
	ChatMaxBatch      int
	ChatHistorySize   int

	WSMessagesPerSecond int
	WSBurst             int

	DashboardRefresh  time.Duration
	PollCloseInterval time.Duration

	// RequiredServices are probed at startup; a failure aborts boot
	RequiredServices []string
}

// Load reads .env (if present) and the process environment.
// JWT_SECRET is the only required variable.
func Load() (*Config, bool, error) {
	envFileLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:        getEnv("PORT", "8787"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8787"),
		WebBaseURL:  getEnv("WEB_BASE_URL", "http://localhost:3000"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "paddock.log"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AWSRegion:  getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:  os.Getenv("AWS_BUCKET"),
		CDNBaseURL: os.Getenv("CDN_BASE_URL"),

		SESFromEmail:     os.Getenv("SES_FROM_EMAIL"),
		SESFromName:      getEnv("SES_FROM_NAME", "Paddock"),
		SupportInbox:     os.Getenv("SUPPORT_INBOX"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),

		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingSampling: getFloat("OTEL_SAMPLING_RATE", 0.1),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),

		ChatFlushInterval: getDuration("CHAT_FLUSH_INTERVAL", 250*time.Millisecond),
		ChatMaxBatch:      getInt("CHAT_MAX_BATCH", 50),
		ChatHistorySize:   getInt("CHAT_HISTORY_SIZE", 200),

		WSMessagesPerSecond: getInt("WS_MESSAGES_PER_SECOND", 10),
		WSBurst:             getInt("WS_BURST", 20),

		DashboardRefresh:  getDuration("DASHBOARD_REFRESH_INTERVAL", 30*time.Second),
		PollCloseInterval: getDuration("POLL_CLOSE_INTERVAL", time.Minute),

		RequiredServices: splitList(strings.ToLower(os.Getenv("REQUIRED_SERVICES"))),
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, envFileLoaded, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return nil, envFileLoaded, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	return cfg, envFileLoaded, nil
}

// IsProduction reports whether ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
