package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Appointment service
	APIBaseURL      string
	APITimeout      time.Duration
	APIRateLimitRPS float64
	APIRateBurst    int

	// Session lifecycle
	IdleTimeout      time.Duration
	RefreshInterval  time.Duration
	SessionStore     string
	SessionFile      string
	SessionDBPath    string
	SessionKeyPrefix string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	DefaultProviderName string
	CORSAllowedOrigins  []string
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreSQLite = "sqlite"
)

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8090"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:      strings.TrimRight(getEnv("HSM_API_BASE_URL", "http://127.0.0.1:5000"), "/"),
		APITimeout:      getEnvAsDuration("HSM_API_TIMEOUT", 10*time.Second),
		APIRateLimitRPS: getEnvAsFloat("HSM_API_RATE_LIMIT_RPS", 5),
		APIRateBurst:    getEnvAsInt("HSM_API_RATE_LIMIT_BURST", 10),

		IdleTimeout:      getEnvAsDuration("IDLE_TIMEOUT", 180*time.Second),
		RefreshInterval:  getEnvAsDuration("REFRESH_INTERVAL", 30*time.Second),
		SessionStore:     strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", SessionStoreFile))),
		SessionFile:      getEnv("SESSION_FILE", "hsm-session.json"),
		SessionDBPath:    getEnv("SESSION_DB", "hsm-session.db"),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "hsm:session:"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DefaultProviderName: getEnv("DEFAULT_PROVIDER_NAME", "Dr. Jane Smith"),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
