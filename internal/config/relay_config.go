package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// RelayConfig holds configuration for the outbox relay process, which also
// runs the subscription expiry scan.
type RelayConfig struct {
	DatabaseURL           string
	RabbitMQURL           string
	NotificationQueueName string
	HealthPort            string
	ExpiryScanInterval    time.Duration
	FanoutConcurrency     int

	Logging LoggingConfig
}

func LoadRelayConfig() *RelayConfig {
	_ = godotenv.Load()

	return &RelayConfig{
		DatabaseURL:           mustEnv("DB_CONNECTION_STRING"),
		RabbitMQURL:           os.Getenv("RABBITMQ_URL"),
		NotificationQueueName: getEnv("NOTIFICATION_QUEUE_NAME", "notifications"),
		HealthPort:            getEnv("HEALTH_PORT", "8090"),
		ExpiryScanInterval:    mustDuration("EXPIRY_SCAN_INTERVAL", time.Hour),
		FanoutConcurrency:     mustInt("FANOUT_CONCURRENCY", 8),
		Logging:               loadLogging(),
	}
}
