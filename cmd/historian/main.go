// Command historian drains the card action queue into PostgreSQL and marks
// idle games abandoned.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/songdecks/internal/cache"
	"github.com/jason-s-yu/songdecks/internal/config"
	"github.com/jason-s-yu/songdecks/internal/database"
	"github.com/jason-s-yu/songdecks/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.Logger()
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		logger.Fatal("historian needs DATABASE_URL and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("connect to redis")
	}
	defer rdb.Close()

	svc := historian.New(rdb, db, historian.Config{
		Queue:         cfg.HistorianQueue,
		BatchSize:     cfg.HistorianBatchSize,
		FlushInterval: cfg.HistorianFlush,
		Inactivity:    cfg.InactivityTimeout,
		SweepSchedule: cfg.SweepSchedule,
	}, logger)
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian failed")
		os.Exit(1)
	}
}
