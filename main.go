package main

import (
	"context"

	"ShareDrop/config"
	"ShareDrop/internal/cipher"
	"ShareDrop/internal/handler"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/mq"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/service"
	"ShareDrop/internal/session"
	"ShareDrop/internal/storage"
	"ShareDrop/router"
	"ShareDrop/utils"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main initializes services and starts the HTTP server.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	db, err := repo.OpenMysql(cfg)
	if err != nil {
		logger.Fatal("open mysql failed", zap.Error(err))
	}
	store := repo.NewStore(db)

	rdb, err := repo.OpenRedis(cfg)
	if err != nil {
		logger.Fatal("open redis failed", zap.Error(err))
	}
	sessions := session.NewManager(utils.NewRedisCache(rdb), cfg.SessionSecret, cfg.SessionTTL)

	layout := storage.NewLayout(cfg)

	mirror, err := storage.NewMirror(context.Background(), cfg)
	if err != nil {
		logger.Fatal("open mirror failed", zap.Error(err))
	}

	var gateway cipher.Gateway
	if cfg.AllowCrypt {
		gateway, err = cipher.NewGpgGateway(cfg.CryptBinary)
		if err != nil {
			logger.Fatal("cipher binary unusable", zap.Error(err))
		}
	}

	var publisher service.MailPublisher
	if cfg.RabbitMQURL != "" {
		client, err := mq.NewPublisher(cfg)
		if err != nil {
			logger.Fatal("open rabbitmq failed", zap.Error(err))
		}
		defer client.Close()
		publisher = client
	}

	uploads := service.NewUploadService(cfg, store, layout, mirror, gateway, sessions, publisher)
	downloads := service.NewDownloadService(cfg, store, layout, gateway, sessions)

	r := router.InitRouter(
		cfg,
		sessions,
		handler.NewUploadHandler(cfg, uploads),
		handler.NewDownloadHandler(cfg, downloads),
	)

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
