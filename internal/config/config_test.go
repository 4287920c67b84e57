package config

import (
	"testing"
	"time"
)

var allKeys = []string{
	"DB_SOURCE", "STORE_BACKEND", "SERVER_PORT", "ENVIRONMENT", "LOG_LEVEL", "REDIS_ADDR",
	"KAFKA_BROKER", "KAFKA_TOPIC", "OTEL_EXPORTER_OTLP_ENDPOINT", "MAX_RETRIES", "SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_SOURCE", "postgres://localhost/bloodbank")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.StoreBackend != BackendPostgres || cfg.Port != "8080" || cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KafkaTopic != "bloodbank.events" || cfg.MaxRetries != 3 || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_RequiresDBSourceForPostgres(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DB_SOURCE")
	}

	t.Setenv("STORE_BACKEND", BackendMemory)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected memory backend without DB_SOURCE, got %v", err)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.StoreBackend)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_BACKEND", "sqlite"},
		{"MAX_RETRIES", "0"},
		{"MAX_RETRIES", "-1"},
		{"MAX_RETRIES", "many"},
		{"SHUTDOWN_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DB_SOURCE", "postgres://localhost/bloodbank")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
