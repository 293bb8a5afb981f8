package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EngineConfig tunes the aggregation and caching behavior.
type EngineConfig struct {
	KellyCapMax            float64 // ceiling on Kelly fraction
	OpportunityTTL         time.Duration
	MinOddsChangeThreshold float64 // decimal-odds delta below which updates stay silent
	ModelTimeout           time.Duration
	Bankroll               float64 // starting bankroll for equity-curve metrics
	EvictionInterval       time.Duration
	WeightRecalcInterval   time.Duration
	Workers                int
	ShutdownTimeout        time.Duration
}

// FeedConfig configures the inbound odds feed connection.
type FeedConfig struct {
	URL                  string
	Topics               []string // upstream topics subscribed on connect
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
}

// AlertConfig configures opportunity alerting.
type AlertConfig struct {
	MinExpectedValue float64 // EV per unit stake required to alert
	DedupTTL         time.Duration
	RatePerMinute    int
}

// ServerConfig holds the HTTP/WebSocket listen address.
type ServerConfig struct {
	Addr string
}

// RedisConfig holds Redis connection configuration. URL empty disables
// the Redis-backed components (alert dedup, stream publishing).
type RedisConfig struct {
	URL      string
	Password string
}

// PostgresConfig holds the bet-ledger database DSN. Empty disables
// persistence and the tracker runs in-memory only.
type PostgresConfig struct {
	DSN string
}

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Feed     FeedConfig
	Alerts   AlertConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	LogLevel string
}

// Load reads configuration from environment variables, falling back to
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8090"),
		},
		Engine: EngineConfig{
			KellyCapMax:            getEnvFloat("KELLY_CAP_MAX", 0.5),
			OpportunityTTL:         time.Duration(getEnvInt("OPPORTUNITY_TTL_SECONDS", 300)) * time.Second,
			MinOddsChangeThreshold: getEnvFloat("MIN_ODDS_CHANGE_THRESHOLD", 0.1),
			ModelTimeout:           time.Duration(getEnvInt("MODEL_TIMEOUT_MS", 2000)) * time.Millisecond,
			Bankroll:               getEnvFloat("BANKROLL", 1000),
			EvictionInterval:       time.Duration(getEnvInt("EVICTION_INTERVAL_SECONDS", 30)) * time.Second,
			WeightRecalcInterval:   time.Duration(getEnvInt("WEIGHT_RECALC_SECONDS", 60)) * time.Second,
			Workers:                getEnvInt("ENGINE_WORKERS", 4),
			ShutdownTimeout:        time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Feed: FeedConfig{
			URL:                  getEnv("FEED_URL", "ws://localhost:8080/ws"),
			Topics:               splitList(getEnv("FEED_TOPICS", "props,odds,settlements")),
			ReconnectBaseDelay:   time.Duration(getEnvInt("RECONNECT_BASE_DELAY_MS", 1000)) * time.Millisecond,
			ReconnectMaxDelay:    time.Duration(getEnvInt("RECONNECT_MAX_DELAY_MS", 30000)) * time.Millisecond,
			ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 10),
			HeartbeatInterval:    time.Duration(getEnvInt("HEARTBEAT_INTERVAL_MS", 30000)) * time.Millisecond,
			HeartbeatTimeout:     time.Duration(getEnvInt("HEARTBEAT_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Alerts: AlertConfig{
			MinExpectedValue: getEnvFloat("ALERT_MIN_EV", 0.05),
			DedupTTL:         time.Duration(getEnvInt("ALERT_DEDUP_TTL_MINUTES", 30)) * time.Minute,
			RatePerMinute:    getEnvInt("ALERT_RATE_PER_MINUTE", 10),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
