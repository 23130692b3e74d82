// Package main applies and rolls back the database schema.
//
//	migrate up
//	migrate down
//	migrate steps N
//	migrate version
//	migrate force V
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"stockledger/internal/infrastructure/config"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithLogger(context.Background(), log)

	m, err := postgres.NewMigrator(cfg.Database.URL)
	if err != nil {
		log.Fatalw("failed to open migrator", "error", err)
	}
	defer func() { _ = m.Close() }()

	if err := run(ctx, m, os.Args[1:]); err != nil {
		log.Fatalw("migration failed", "command", os.Args[1], "error", err)
	}
}

func run(ctx context.Context, m *postgres.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(ctx, n)
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(ctx, v)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		usage()
		return nil
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[1], err)
	}
	return n, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up|down|steps N|version|force V")
	os.Exit(2)
}
