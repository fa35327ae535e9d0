package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	Broker      string // "redis", "nats" or "memory"
	JWTSecret   string
	ServerPort  string
	Environment string
	LogLevel    string
	JWTExpiry   time.Duration

	// Messaging
	MessageMaxLength int
	HistoryPageSize  int

	// Notifier worker pool
	NotifierWorkers   int
	NotifierQueueSize int

	AvatarBaseURL string
	CORSOrigins   []string

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitBlockTime   time.Duration
}

func Load() *Config {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		Broker:      strings.ToLower(getEnv("BROKER", "redis")),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ServerPort:  getEnv("SERVER_PORT", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		JWTExpiry:   getEnvAsDuration("JWT_EXPIRY", "24h"),

		MessageMaxLength: getEnvAsInt("MESSAGE_MAX_LENGTH", 2000),
		HistoryPageSize:  getEnvAsInt("HISTORY_PAGE_SIZE", 50),

		NotifierWorkers:   getEnvAsInt("NOTIFIER_WORKERS", 4),
		NotifierQueueSize: getEnvAsInt("NOTIFIER_QUEUE_SIZE", 1024),

		AvatarBaseURL: strings.TrimRight(os.Getenv("AVATAR_BASE_URL"), "/"),
		CORSOrigins:   getEnvAsList("CORS_ORIGINS", "http://localhost:5173"),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitBlockTime:   getEnvAsDuration("RATE_LIMIT_BLOCK_TIME", "5m"),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	return cfg
}

// IsProduction reports whether secure cookies and JSON logs should be used
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultVal string) []string {
	raw := getEnv(key, defaultVal)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
