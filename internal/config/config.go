package config

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

type Config struct {
	JWTPublicKey *rsa.PublicKey
	DatabaseURL  string
	Port         string

	AllowedOrigins     []string
	RateLimitPerMinute int

	RedisAddress    string
	RedisPassword   string
	ProfileCacheTTL time.Duration

	RabbitMQURL           string
	NotificationQueueName string

	FanoutConcurrency int
	MigrateOnStart    bool

	Logging LoggingConfig
}

// LoggingConfig is shared by the API and the relay.
type LoggingConfig struct {
	Level      string
	Env        string
	SentryDSN  string
	AppVersion string
}

// Load reads the API configuration from the environment, after an optional
// .env file. It panics when a required value is missing or malformed.
func Load() *Config {
	_ = godotenv.Load()

	publicKeyPath := getEnv("PUBLIC_KEY_PATH", "/etc/certs/public.pem")
	publicKey, err := loadPublicKey(publicKeyPath)
	if err != nil {
		panic("Failed to load public key: " + err.Error())
	}

	return &Config{
		JWTPublicKey:          publicKey,
		DatabaseURL:           mustEnv("DB_CONNECTION_STRING"),
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute:    mustInt("RATE_LIMIT_PER_MINUTE", 240),
		RedisAddress:          getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		ProfileCacheTTL:       mustDuration("PROFILE_CACHE_TTL", 10*time.Minute),
		RabbitMQURL:           os.Getenv("RABBITMQ_URL"),
		NotificationQueueName: getEnv("NOTIFICATION_QUEUE_NAME", "notifications"),
		FanoutConcurrency:     mustInt("FANOUT_CONCURRENCY", 8),
		MigrateOnStart:        mustBool("MIGRATE_ON_START", true),
		Logging:               loadLogging(),
	}
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Env:        getEnv("ENV", "dev"),
		SentryDSN:  os.Getenv("SENTRY_DSN"),
		AppVersion: getEnv("APP_VERSION", "dev"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(key + " environment variable is required")
	}
	return v
}

func mustDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		panic(fmt.Sprintf("%s must be a positive duration, got %q", key, v))
	}
	return d
}

func mustInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		panic(fmt.Sprintf("%s must be a positive integer, got %q", key, v))
	}
	return n
}

func mustBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("%s must be a boolean, got %q", key, v))
	}
	return b
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}
