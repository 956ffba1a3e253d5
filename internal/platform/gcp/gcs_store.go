package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
)

const gcsScheme = "gs"

// GCSStore implements filestore.Store on a single bucket. Storage paths are gs:// URIs.
type GCSStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, log *logger.Logger, cfg filestore.Config) (*GCSStore, error) {
	var opts []option.ClientOption
	switch cfg.Mode {
	case filestore.ModeGCS:
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	case filestore.ModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		opts = []option.ClientOption{
			option.WithoutAuthentication(),
			option.WithEndpoint(endpoint + "/storage/v1/"),
		}
	default:
		return nil, fmt.Errorf("unsupported gcs mode %q", cfg.Mode)
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := &GCSStore{log: log.With("service", "GCSStore"), client: c, bucket: cfg.Bucket}
	s.log.Info("GCS file store initialized", "mode", cfg.Mode, "bucket", cfg.Bucket, "emulator_host", cfg.EmulatorHost)
	return s, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = filestore.ContentTypeForKey(key)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return fmt.Sprintf("%s://%s/%s", gcsScheme, s.bucket, key), nil
}

func (s *GCSStore) LocalPath(ctx context.Context, storagePath string) (string, func(), error) {
	bucket, key, err := filestore.SplitURI(gcsScheme, storagePath)
	if err != nil {
		return "", func() {}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	rc, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer rc.Close()
	return filestore.SpoolToTemp(rc, key)
}

func (s *GCSStore) Delete(ctx context.Context, storagePath string) error {
	bucket, key, err := filestore.SplitURI(gcsScheme, storagePath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(bucket).Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bucket, err)
	}
	return nil
}
