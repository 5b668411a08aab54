// cmd/server/main.go
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

	"github.com/jason-s-yu/mighty/internal/auth"
	"github.com/jason-s-yu/mighty/internal/bus"
	"github.com/jason-s-yu/mighty/internal/cache"
	"github.com/jason-s-yu/mighty/internal/config"
	"github.com/jason-s-yu/mighty/internal/database"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load(os.Getenv("MIGHTY_CONFIG"))
	if err != nil {
		return err
	}
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	logrus.SetLevel(logger.GetLevel())

	if err := auth.Init(cfg.Auth.TokenExpire); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.Enabled {
		if err := database.ConnectDB(ctx, cfg.Postgres); err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("postgres connected")
	}
	if cfg.Redis.Enabled {
		if err := cache.ConnectRedis(ctx, cfg.Redis); err != nil {
			return err
		}
		defer cache.Close()
		logger.Infof("redis connected, queue %s", cache.QueueName)
	}

	gs := handlers.NewGameServer(logger, houseRules(cfg.Game), cfg.Game.AutoStart)
	if cfg.NATS.Enabled {
		pub, err := bus.Connect(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		gs.Publisher = pub
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           gs.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		gs.Shutdown("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func houseRules(c config.GameConfig) game.HouseRules {
	return game.HouseRules{
		TurnTimerSec:            c.TurnTimerSec,
		MinBid:                  c.MinBid,
		OpenBidding:             c.OpenBidding,
		AllowDealMiss:           c.AllowDealMiss,
		DealMissThreshold:       c.DealMissThreshold,
		TrumpChangeRaise:        c.TrumpChangeRaise,
		JokerPowerlessFirstLast: c.JokerPowerlessFirstLast,
		StartingChips:           c.StartingChips,
		TrickClearDelayMs:       c.TrickClearDelayMs,
	}
}
