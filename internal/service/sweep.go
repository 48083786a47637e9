package service

import (
	"context"
	"errors"
	"os"

	"ShareDrop/config"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/storage"
	"ShareDrop/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sweepLockKey serializes sweep runs across instances.
const sweepLockKey = "sweep:lock"

// Sweeper removes expired uploads: their rows are soft-deleted in one
// transaction while their artifacts are unlinked from disk and the mirror.
type Sweeper struct {
	cfg    *config.Config
	store  *repo.Store
	layout *storage.Layout
	mirror *storage.Mirror
	rdb    *redis.Client
}

// NewSweeper wires the expiry sweep.
func NewSweeper(cfg *config.Config, store *repo.Store, layout *storage.Layout, mirror *storage.Mirror, rdb *redis.Client) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		layout: layout,
		mirror: mirror,
		rdb:    rdb,
	}
}

// Run performs one sweep. All row mutations ride a single transaction, so
// a persistence failure rolls everything back and the next run retries the
// same uploads; unlink failures only log, because a vanished artifact must
// not wedge the sweep. Concurrent runs are excluded through a Redis lease.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.rdb != nil {
		lock := repo.NewRedisLock(s.rdb, sweepLockKey, s.cfg.SweepLockTTL)
		if err := lock.Lock(ctx); err != nil {
			if errors.Is(err, repo.ErrLockBusy) {
				logger.Info("sweep already running elsewhere, skipping")
				return nil
			}
			return err
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				logger.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	cursor, err := s.store.ExpiredUploads()
	if err != nil {
		return err
	}
	defer cursor.Close()

	txn := s.store.Txn()
	if err := txn.Begin(); err != nil {
		return err
	}

	swept := 0
	for {
		upload, ok, err := cursor.Next()
		if err != nil {
			_ = txn.Rollback()
			return err
		}
		if !ok {
			break
		}
		if err := s.sweepUpload(ctx, txn, upload); err != nil {
			_ = txn.Rollback()
			return err
		}
		swept++
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	logger.Info("sweep finished", zap.Int("uploads", swept))
	return nil
}

func (s *Sweeper) sweepUpload(ctx context.Context, txn *repo.Txn, upload *model.Upload) error {
	files, err := txn.GetFilesForUpload(upload.ID)
	if err != nil {
		return err
	}

	for _, file := range files {
		relPath := file.File
		if upload.Crypt {
			relPath += s.cfg.CryptSuffix
		}
		if err := s.layout.Remove(relPath); err != nil {
			logger.Warn("unlink expired artifact failed",
				zap.String("upload", upload.Slug),
				zap.String("path", relPath),
				zap.Error(err),
			)
		}
		if err := s.mirror.Remove(ctx, relPath); err != nil {
			logger.Warn("remove mirrored artifact failed",
				zap.String("path", relPath),
				zap.Error(err),
			)
		}
		if err := txn.MarkFileDeleted(file.ID); err != nil {
			return err
		}
	}

	// Archive staging left behind by earlier service generations.
	if err := os.RemoveAll(s.layout.TempZipDir(upload.Slug)); err != nil {
		logger.Warn("remove archive staging failed", zap.String("upload", upload.Slug), zap.Error(err))
	}

	if err := txn.MarkUploadDeleted(upload.ID); err != nil {
		return err
	}
	logger.Info("swept expired upload",
		zap.String("slug", upload.Slug),
		zap.Int("files", len(files)),
		zap.Time("created_at", upload.CreatedAt),
	)
	return nil
}
