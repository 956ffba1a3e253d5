package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
	"github.com/yungbote/docsentinel-backend/internal/platform/gcp"
)

var newGCSStore = gcp.NewGCSStore

type StorageProviderBootstrapError struct {
	Code  filestore.ConfigErrorCode
	Mode  filestore.Mode
	Cause error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "file store bootstrap failed"
	}
	return fmt.Sprintf("file store bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

const storageConnectFailed filestore.ConfigErrorCode = "connect_failed"

// resolveFileStore builds the store selected by cfg.Mode. The returned closer is never nil.
func resolveFileStore(ctx context.Context, log *logger.Logger, cfg filestore.Config) (filestore.Store, func(), error) {
	noop := func() {}
	if err := filestore.Validate(cfg); err != nil {
		return nil, noop, classifyStorageError(cfg, err)
	}
	log.Info("Selecting file store", "mode", cfg.Mode, "bucket", cfg.Bucket, "local_dir", cfg.LocalDir)

	switch cfg.Mode {
	case filestore.ModeLocal:
		s, err := filestore.NewLocalStore(log, cfg.LocalDir)
		if err != nil {
			return nil, noop, classifyStorageError(cfg, err)
		}
		return s, noop, nil
	case filestore.ModeMinIO:
		s, err := filestore.NewMinIOStore(ctx, log, cfg)
		if err != nil {
			return nil, noop, classifyStorageError(cfg, err)
		}
		return s, noop, nil
	default:
		s, err := newGCSStore(ctx, log, cfg)
		if err != nil {
			return nil, noop, classifyStorageError(cfg, err)
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func classifyStorageError(cfg filestore.Config, err error) error {
	var cfgErr *filestore.ConfigError
	if errors.As(err, &cfgErr) {
		return &StorageProviderBootstrapError{Code: cfgErr.Code, Mode: cfg.Mode, Cause: err}
	}
	return &StorageProviderBootstrapError{Code: storageConnectFailed, Mode: cfg.Mode, Cause: err}
}
