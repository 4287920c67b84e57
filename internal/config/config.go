package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	DBSource        string
	StoreBackend    string
	Port            string
	Env             string
	LogLevel        string
	RedisAddr       string
	KafkaBroker     string
	KafkaTopic      string
	OTLPEndpoint    string
	MaxRetries      int
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	backend := getenv("STORE_BACKEND", BackendPostgres)
	if backend != BackendPostgres && backend != BackendMemory {
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, backend)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && backend == BackendPostgres {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	maxRetries, err := strconv.Atoi(getenv("MAX_RETRIES", "3"))
	if err != nil || maxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be a positive integer")
	}

	shutdownTimeout, err := time.ParseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		DBSource:        dbSource,
		StoreBackend:    backend,
		Port:            getenv("SERVER_PORT", "8080"),
		Env:             getenv("ENVIRONMENT", "development"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		KafkaTopic:      getenv("KAFKA_TOPIC", "bloodbank.events"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MaxRetries:      maxRetries,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
