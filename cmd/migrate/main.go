package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"signal-scanner/internal/db"
	"signal-scanner/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = "usage: go run ./cmd/migrate [up|down|version] [steps]"

var (
	loadEnvFunc = godotenv.Load
	connectDB   = func(ctx context.Context, dsn string) (db.Pool, func(), error) {
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
)

func main() {
	_ = loadEnvFunc()

	log, err := logger.New(os.Getenv("LOG_LEVEL"), "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), log, os.Args[1:], os.Getenv("DATABASE_URL")); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}
}

func run(ctx context.Context, log *zap.Logger, args []string, dsn string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	cmd := args[0]
	steps := 1
	switch cmd {
	case "up", "version":
	case "down":
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid down steps: %q", args[1])
			}
			steps = n
		}
	default:
		return fmt.Errorf("unknown command %q. %s", cmd, usage)
	}

	if strings.TrimSpace(dsn) == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, closePool, err := connectDB(ctx, dsn)
	if err != nil {
		return err
	}
	defer closePool()

	migrations, err := db.Migrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	switch cmd {
	case "up":
		n, err := db.Up(ctx, pool, migrations)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		log.Info("migrations up complete", zap.Int("applied", n))
	case "down":
		n, err := db.Down(ctx, pool, migrations, steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		log.Info("migrations down complete", zap.Int("rolled_back", n))
	case "version":
		version, name, err := db.CurrentVersion(ctx, pool)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			log.Info("no migrations applied")
			return nil
		}
		log.Info("current version", zap.Int64("version", version), zap.String("name", name))
	}
	return nil
}
