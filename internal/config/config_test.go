package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func writePublicKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "public.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PUBLIC_KEY_PATH", writePublicKey(t))
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/xen")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.ProfileCacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache ttl, got %s", cfg.ProfileCacheTTL)
	}
	if cfg.FanoutConcurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.FanoutConcurrency)
	}
	if cfg.NotificationQueueName != "notifications" {
		t.Errorf("unexpected queue %q", cfg.NotificationQueueName)
	}
	if !cfg.MigrateOnStart {
		t.Error("expected migrations on start by default")
	}
	if cfg.RateLimitPerMinute != 240 || len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected http defaults %d %v", cfg.RateLimitPerMinute, cfg.AllowedOrigins)
	}
	if cfg.JWTPublicKey == nil {
		t.Error("expected public key to be parsed")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PUBLIC_KEY_PATH", writePublicKey(t))
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/xen")
	t.Setenv("PROFILE_CACHE_TTL", "90s")
	t.Setenv("FANOUT_CONCURRENCY", "3")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.xenwatch.io, https://admin.xenwatch.io,")

	cfg := Load()

	if cfg.ProfileCacheTTL != 90*time.Second || cfg.FanoutConcurrency != 3 || cfg.MigrateOnStart {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.xenwatch.io" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoad_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing_database", env: map[string]string{"DB_CONNECTION_STRING": ""}},
		{name: "bad_duration", env: map[string]string{"PROFILE_CACHE_TTL": "soon"}},
		{name: "zero_concurrency", env: map[string]string{"FANOUT_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PUBLIC_KEY_PATH", writePublicKey(t))
			t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/xen")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			Load()
		})
	}
}

func TestLoadRelayConfig(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/xen")
	t.Setenv("EXPIRY_SCAN_INTERVAL", "15m")

	cfg := LoadRelayConfig()

	if cfg.ExpiryScanInterval != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.ExpiryScanInterval)
	}
	if cfg.HealthPort != "8090" {
		t.Errorf("expected health port 8090, got %s", cfg.HealthPort)
	}
	if cfg.RabbitMQURL != "" && os.Getenv("RABBITMQ_URL") == "" {
		t.Error("rabbitmq must be optional")
	}
}

func TestNewCircuitBreaker_TripsAfterThreeFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerPostgres, nil)
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, os.ErrDeadlineExceeded })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected open breaker, got %s", cb.State())
	}
}
