package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ShareDrop/config"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main runs the mail delivery worker until interrupted.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mail worker starting",
		zap.Int("concurrency", cfg.MailWorkerConcurrency),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)
	if err := worker.RunMailWorker(ctx, cfg); err != nil {
		logger.Error("mail worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
