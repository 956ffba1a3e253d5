package filestore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

const minioScheme = "minio"

// MinIOStore stores objects in an S3-compatible bucket. Storage paths look like
// minio://bucket/key.
type MinIOStore struct {
	log    *logger.Logger
	client *minio.Client
	bucket string
}

func NewMinIOStore(ctx context.Context, log *logger.Logger, cfg Config) (*MinIOStore, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	s := &MinIOStore{log: log.With("service", "MinIOStore"), client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	s.log.Info("MinIO file store initialized", "endpoint", cfg.MinIOEndpoint, "bucket", cfg.Bucket)
	return s, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *MinIOStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if size <= 0 {
		size = -1
	}
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return fmt.Sprintf("%s://%s/%s", minioScheme, s.bucket, key), nil
}

func (s *MinIOStore) LocalPath(ctx context.Context, storagePath string) (string, func(), error) {
	bucket, key, err := SplitURI(minioScheme, storagePath)
	if err != nil {
		return "", func() {}, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to open object: %w", err)
	}
	defer obj.Close()
	return SpoolToTemp(obj, key)
}

func (s *MinIOStore) Delete(ctx context.Context, storagePath string) error {
	bucket, key, err := SplitURI(minioScheme, storagePath)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
