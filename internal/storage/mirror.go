package storage

import (
	"context"
	"fmt"

	"ShareDrop/config"
	"ShareDrop/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Mirror copies stored artifacts to an S3-compatible bucket so a lost data
// directory is recoverable. A nil Mirror is valid and does nothing.
type Mirror struct {
	client *minio.Client
	bucket string
}

// NewMirror connects to the configured object store and makes sure the
// bucket exists. Returns nil when mirroring is disabled.
func NewMirror(ctx context.Context, cfg *config.Config) (*Mirror, error) {
	if !cfg.MirrorEnabled {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s:%s", cfg.MirrorHost, cfg.MirrorPort)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MirrorUsername, cfg.MirrorPassword, ""),
		Secure: cfg.MirrorUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MirrorBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MirrorBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	logger.Info("mirror enabled", zap.String("endpoint", endpoint), zap.String("bucket", cfg.MirrorBucket))
	return &Mirror{client: client, bucket: cfg.MirrorBucket}, nil
}

// Enabled reports whether mirroring is active.
func (m *Mirror) Enabled() bool {
	return m != nil
}

// Put uploads a local artifact under its relative path as object key.
func (m *Mirror) Put(ctx context.Context, relPath, absPath string) error {
	if m == nil {
		return nil
	}
	_, err := m.client.FPutObject(ctx, m.bucket, relPath, absPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// Remove deletes the mirrored object.
func (m *Mirror) Remove(ctx context.Context, relPath string) error {
	if m == nil {
		return nil
	}
	return m.client.RemoveObject(ctx, m.bucket, relPath, minio.RemoveObjectOptions{})
}
