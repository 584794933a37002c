package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/config"
	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/repository"
	"crop-outbreaks/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := repository.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer client.Close()

	notifier := service.NewNotifier(
		feed.NewRedisBroker(client),
		service.StaticLocator{Point: cfg.NotifierLocation},
		service.LogSink{Logger: logger},
		logger,
		cfg.LocateTimeout,
	)
	if err := notifier.Run(ctx); err != nil {
		logger.WithError(err).Error("notifier stopped")
		return
	}
	logger.Info("Notifier stopped")
}
