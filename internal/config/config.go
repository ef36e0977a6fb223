package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Relay endpoint, shared by server and clients.
	RelayURL  string
	RelayPath string

	CORSOrigins  []string
	PingInterval time.Duration
	PingTimeout  time.Duration
	MaxPayload   int

	// Routing options
	ExcludeSender     bool
	RequireMembership bool

	RedisURL    string // empty keeps the room registry in memory
	DatabaseURL string // results lookups for the presenter
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
// In production, it panics on a relative relay path; elsewhere the path is
// made absolute.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RelayURL:          getEnv("RELAY_URL", "http://localhost:3000"),
		RelayPath:         getEnv("RELAY_PATH", "/api/socket"),
		CORSOrigins:       getList("CORS_ORIGINS", []string{"*"}),
		PingInterval:      getDuration("PING_INTERVAL", 25*time.Second),
		PingTimeout:       getDuration("PING_TIMEOUT", 20*time.Second),
		MaxPayload:        getInt("MAX_PAYLOAD", 1000000),
		ExcludeSender:     getEnv("RELAY_EXCLUDE_SENDER", "false") == "true",
		RequireMembership: getEnv("RELAY_REQUIRE_MEMBERSHIP", "false") == "true",
		RedisURL:          os.Getenv("REDIS_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
	}

	if cfg.Env == "production" && !strings.HasPrefix(cfg.RelayPath, "/") {
		panic("RELAY_PATH must be an absolute path in production")
	}
	cfg.RelayPath = normalizePath(cfg.RelayPath)

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// normalizePath gives the relay path one leading slash and no trailing
// slash, so clients and server agree on it.
func normalizePath(path string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return "/api/socket"
	}
	return path
}

// getList parses a comma-separated variable.
func getList(key string, defaultValue []string) []string {
	var list []string
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			list = append(list, entry)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
