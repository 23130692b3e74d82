// Package main is the entry point for the stockledger background worker.
// It relays outbox events to Redis and cleans up expired rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/infrastructure/config"
	"stockledger/internal/infrastructure/messaging"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/worker"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(logger.WithLogger(context.Background(), log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = cfg.App.Name + "-worker"

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.Database.StatementTimeout))

	publisher, err := messaging.NewRedisPublisher(ctx, messaging.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = publisher.Close() }()

	relay := postgres.NewOutboxRelay(txm, publisher, postgres.OutboxRelayConfig{
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
		Backoff:    cfg.Outbox.Backoff,
	})

	var keys worker.KeyCleaner
	if cfg.Idempotency.Enabled {
		keys = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	}

	w := worker.New(relay, keys, worker.Config{
		PollInterval:    cfg.Outbox.PollInterval,
		CleanupInterval: time.Hour,
		BatchSize:       cfg.Outbox.BatchSize,
		Retention:       cfg.Outbox.Retention,
	}, log)

	log.Infow("worker running",
		"poll_interval", cfg.Outbox.PollInterval,
		"batch_size", cfg.Outbox.BatchSize,
		"channel", cfg.Redis.Channel,
	)
	w.Run(ctx)
	log.Info("worker stopped")
}
