package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/bloodbank/internal/api"
	"github.com/punchamoorthee/bloodbank/internal/config"
	"github.com/punchamoorthee/bloodbank/internal/events"
	"github.com/punchamoorthee/bloodbank/internal/idempotency"
	"github.com/punchamoorthee/bloodbank/internal/service"
	"github.com/punchamoorthee/bloodbank/internal/store"
	"github.com/punchamoorthee/bloodbank/internal/telemetry"
	"github.com/punchamoorthee/bloodbank/migrations"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := telemetry.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("Unable to start tracing", zap.Error(err))
	}

	// Initialize Layers
	s, closeStore := openStore(ctx, cfg, logger)
	idem := openIdempotency(ctx, cfg, logger)
	publisher := openPublisher(cfg, logger)

	coord := service.NewCoordinator(s, service.Options{
		Logger:     logger,
		Publisher:  publisher,
		MaxRetries: cfg.MaxRetries,
	})
	handler := api.NewHandler(coord, idem, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("Event publisher close failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown failed", zap.Error(err))
	}
	closeStore()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, func()) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}
	}

	pg, err := store.Open(ctx, cfg.DBSource)
	if err != nil {
		logger.Fatal("Unable to connect to database", zap.Error(err))
	}
	if err := migrations.Apply(ctx, pg.Db); err != nil {
		pg.Close()
		logger.Fatal("Unable to apply migrations", zap.Error(err))
	}
	return pg, pg.Close
}

// openIdempotency prefers Redis so keys are shared across replicas. An
// unreachable Redis falls back to process memory.
func openIdempotency(ctx context.Context, cfg *config.Config, logger *zap.Logger) idempotency.Store {
	if cfg.RedisAddr == "" {
		return idempotency.NewMemory(nil)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, keeping idempotency keys in memory",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		client.Close()
		return idempotency.NewMemory(nil)
	}
	return idempotency.NewRedis(client)
}

func openPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.KafkaBroker == "" {
		return events.NewLogPublisher(logger)
	}
	logger.Info("Publishing events to Kafka", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	return events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger)
}
