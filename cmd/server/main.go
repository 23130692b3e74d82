// Package main is the entry point for the stockledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/core/idempotency"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/consumption"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/transfer"
	"stockledger/internal/infrastructure/config"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/transfer_repo"
	"stockledger/pkg/logger"
)

const version = "0.1.0"

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

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting server", "app", cfg.App.Name, "env", cfg.App.Env)

	if cfg.Database.AutoMigrate {
		if err := migrateUp(ctx, cfg.Database.URL); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
	}

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	poolCfg.ApplicationName = cfg.App.Name

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	pool.LogStats(ctx)

	txm := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.Database.StatementTimeout))

	auditLog, err := postgres.NewAuditLog(txm)
	if err != nil {
		log.Fatalw("failed to create audit log", "error", err)
	}

	// --- Repositories ---
	warehouseRepo := catalog_repo.NewWarehouseRepo(txm)
	productRepo := catalog_repo.NewProductRepo(txm)
	ledgerStore := ledger_repo.NewStore(txm)
	transferRepo := transfer_repo.NewRepo(txm)
	outbox := postgres.NewOutboxPublisher(txm)
	num := numerator.NewWithResolver(func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) })

	// --- Services ---
	resolver := catalogs.NewResolver(warehouseRepo, productRepo)
	recorder := ledger.NewRecorder(ledgerStore, resolver, txm)

	services := v1.Services{
		Warehouses:  warehouse.NewService(warehouseRepo, txm, num, auditLog),
		Products:    product.NewService(productRepo, txm, num, auditLog),
		Ledger:      ledger.NewService(ledgerStore, resolver, txm),
		Adjustments: adjustment.NewService(recorder, txm, outbox),
		Events:      consumption.NewHooks(recorder, txm),
		Transfers:   transfer.NewService(transferRepo, recorder, resolver, txm, num, outbox, auditLog),
	}

	var idemStore idempotency.Store
	if cfg.Idempotency.Enabled {
		idemStore = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Services:    services,
		Database:    pool,
		Logger:      log,
		Idempotency: idemStore,
		AppName:     cfg.App.Name,
		AppVersion:  version,
		Debug:       cfg.App.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func migrateUp(ctx context.Context, dsn string) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up(ctx)
}
