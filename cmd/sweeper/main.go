package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ShareDrop/config"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/service"
	"ShareDrop/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main runs one expiry sweep and exits. Schedule it from cron or a
// Kubernetes CronJob; a non-zero exit marks an aborted sweep.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenMysql(cfg)
	if err != nil {
		logger.Error("open mysql failed", zap.Error(err))
		os.Exit(1)
	}
	store := repo.NewStore(db)

	rdb, err := repo.OpenRedis(cfg)
	if err != nil {
		logger.Error("open redis failed", zap.Error(err))
		os.Exit(1)
	}

	mirror, err := storage.NewMirror(ctx, cfg)
	if err != nil {
		logger.Error("open mirror failed", zap.Error(err))
		os.Exit(1)
	}

	sweeper := service.NewSweeper(cfg, store, storage.NewLayout(cfg), mirror, rdb)
	if err := sweeper.Run(ctx); err != nil {
		logger.Error("sweep aborted", zap.Error(err))
		os.Exit(1)
	}
}
