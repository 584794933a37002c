package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/config"
	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/handler"
	"crop-outbreaks/internal/oracle"
	"crop-outbreaks/internal/repository"
	"crop-outbreaks/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is empty")
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := repository.NewStorage(ctx, cfg.DatabaseURL, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}

	if err := storage.CreateTables(ctx); err != nil {
		logger.WithError(err).Fatal("failed to create tables")
	}

	reports := storage.Reports()
	var alertStore repository.AlertRepository = storage.Alerts()
	if cfg.AlertBackend == config.AlertBackendNotes {
		alertStore = repository.NewNoteAlertStore(reports)
	}

	broker := feed.NewRedisBroker(storage.Redis())
	alerts := repository.NewBroadcastingAlertRepository(alertStore, broker, logger)

	oracleClient := oracle.NewClient(cfg.Oracle, logger)
	if !oracleClient.Enabled() {
		logger.Warn("OUTBREAK_WEBHOOK_URL is empty, outbreak evaluation is disabled")
	}
	evaluator := service.NewEvaluator(reports, alerts, oracleClient, logger, cfg.StoreTimeout)

	svc := service.NewService(reports, alerts, evaluator, storage, logger, cfg.StoreTimeout).
		WithFeed(broker, cfg.EvaluateFromFeed)
	h := handler.NewHandler(logger, svc)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server ListenAndServe error")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":          cfg.HTTPAddr,
		"alert_backend": cfg.AlertBackend,
	}).Info("Server started")

	if cfg.EvaluateFromFeed {
		worker := service.NewReportWorker(broker, evaluator, logger)
		go worker.Run(ctx)
		logger.Info("Report worker started")
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server forced to shutdown")
	} else {
		logger.Info("Server stopped gracefully")
	}

	if err := storage.Close(); err != nil {
		logger.WithError(err).Warn("storage close error")
	} else {
		logger.Info("Storage closed")
	}
}
