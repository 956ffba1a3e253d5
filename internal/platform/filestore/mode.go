package filestore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
)

type Mode string

const (
	ModeLocal       Mode = "local"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
	ModeMinIO       Mode = "minio"
)

type Config struct {
	Mode     Mode
	LocalDir string
	Bucket   string

	EmulatorHost string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
	ConfigErrorMissingMinIO        ConfigErrorCode = "missing_minio_endpoint"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Mode  string
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid file store config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid FILE_STORE_MODE=%q (allowed: %q, %q, %q, %q)", e.Mode, ModeLocal, ModeGCS, ModeGCSEmulator, ModeMinIO)
	case ConfigErrorMissingBucket:
		return fmt.Sprintf("FILE_STORE_MODE=%q requires FILE_STORE_BUCKET", e.Mode)
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("FILE_STORE_MODE=%q requires STORAGE_EMULATOR_HOST", e.Mode)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	case ConfigErrorMissingMinIO:
		return fmt.Sprintf("FILE_STORE_MODE=%q requires MINIO_ENDPOINT", e.Mode)
	default:
		return "invalid file store config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Mode:           Mode(strings.ToLower(envutil.String("FILE_STORE_MODE", string(ModeLocal)))),
		LocalDir:       envutil.String("FILE_STORE_DIR", "./uploads"),
		Bucket:         envutil.String("FILE_STORE_BUCKET", ""),
		EmulatorHost:   envutil.String("STORAGE_EMULATOR_HOST", ""),
		MinIOEndpoint:  envutil.String("MINIO_ENDPOINT", ""),
		MinIOAccessKey: envutil.String("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: envutil.String("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    envutil.Bool("MINIO_USE_SSL", false),
	}
	return cfg, Validate(cfg)
}

func Validate(cfg Config) error {
	switch cfg.Mode {
	case ModeLocal:
		return nil
	case ModeGCS, ModeGCSEmulator, ModeMinIO:
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return &ConfigError{Code: ConfigErrorMissingBucket, Mode: string(cfg.Mode)}
	}
	switch cfg.Mode {
	case ModeGCSEmulator:
		if cfg.EmulatorHost == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
		}
		u, err := url.Parse(cfg.EmulatorHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Mode: string(cfg.Mode), Value: cfg.EmulatorHost, Cause: err}
		}
	case ModeMinIO:
		if strings.TrimSpace(cfg.MinIOEndpoint) == "" {
			return &ConfigError{Code: ConfigErrorMissingMinIO, Mode: string(cfg.Mode)}
		}
	}
	return nil
}
