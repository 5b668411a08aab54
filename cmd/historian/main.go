// cmd/historian/main.go pops game actions from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/mighty/internal/cache"
	"github.com/jason-s-yu/mighty/internal/config"
	"github.com/jason-s-yu/mighty/internal/database"
	"github.com/jason-s-yu/mighty/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("MIGHTY_CONFIG"))
	if err != nil {
		logger.Fatal(err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Postgres); err != nil {
		logger.Fatal(err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	if err := cache.ConnectRedis(ctx, cfg.Redis); err != nil {
		logger.Fatal(err)
	}
	defer cache.Close()

	svc := historian.New(historian.RedisSource{}, historian.PostgresStore{Pool: database.DB}, historian.Config{
		BatchSize:         cfg.Historian.BatchSize,
		PollTimeout:       cfg.Historian.PollTimeout,
		InactivityTimeout: cfg.Historian.InactivityTimeout,
	}, logger)
	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian: %v", err)
	}
}
