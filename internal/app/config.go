package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
)

type Config struct {
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`

	// DatabaseDriver is postgres or sqlite.
	DatabaseDriver string `yaml:"database_driver"`
	SQLiteDSN      string `yaml:"sqlite_dsn"`

	JWTSecretKey   string   `yaml:"jwt_secret_key"`
	JWTIssuer      string   `yaml:"jwt_issuer"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	RedisAddr      string `yaml:"redis_addr"`
	LockPrefix     string `yaml:"lock_prefix"`
	MetricsAddr    string `yaml:"metrics_addr"`
	HeuristicsFile string `yaml:"heuristics_file"`

	AnalysisTimeout       time.Duration `yaml:"analysis_timeout"`
	MaxConcurrentAnalyses int           `yaml:"max_concurrent_analyses"`
	UploadConcurrency     int           `yaml:"upload_concurrency"`
	MaxFilesPerUpload     int           `yaml:"max_files_per_upload"`

	RunWorker         bool          `yaml:"run_worker"`
	WorkerConcurrency int           `yaml:"worker_concurrency"`
	WorkerPoll        time.Duration `yaml:"worker_poll"`
	WorkerStaleAfter  time.Duration `yaml:"worker_stale_after"`
}

func defaultConfig() Config {
	return Config{
		Environment:           "development",
		Port:                  "8080",
		DatabaseDriver:        "postgres",
		SQLiteDSN:             "docsentinel.db",
		JWTIssuer:             "docsentinel",
		LockPrefix:            "docsentinel:lock:",
		AnalysisTimeout:       3 * time.Minute,
		MaxConcurrentAnalyses: 4,
		UploadConcurrency:     4,
		MaxFilesPerUpload:     10,
		RunWorker:             true,
		WorkerConcurrency:     2,
		WorkerPoll:            time.Second,
		WorkerStaleAfter:      30 * time.Minute,
	}
}

// LoadConfig layers defaults, the YAML file named by CONFIG_FILE, then environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.DatabaseDriver = strings.ToLower(envutil.String("DATABASE_DRIVER", cfg.DatabaseDriver))
	cfg.SQLiteDSN = envutil.String("SQLITE_DSN", cfg.SQLiteDSN)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.JWTIssuer = envutil.String("JWT_ISSUER", cfg.JWTIssuer)
	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}
	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.LockPrefix = envutil.String("LOCK_PREFIX", cfg.LockPrefix)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
	cfg.HeuristicsFile = envutil.String("HEURISTICS_FILE", cfg.HeuristicsFile)
	cfg.AnalysisTimeout = envutil.Seconds("ANALYSIS_TIMEOUT_SECONDS", cfg.AnalysisTimeout)
	cfg.MaxConcurrentAnalyses = envutil.Int("MAX_CONCURRENT_ANALYSES", cfg.MaxConcurrentAnalyses)
	cfg.UploadConcurrency = envutil.Int("UPLOAD_CONCURRENCY", cfg.UploadConcurrency)
	cfg.MaxFilesPerUpload = envutil.Int("MAX_FILES_PER_UPLOAD", cfg.MaxFilesPerUpload)
	cfg.RunWorker = envutil.Bool("RUN_WORKER", cfg.RunWorker)
	cfg.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.WorkerPoll = envutil.Seconds("WORKER_POLL_INTERVAL_SECONDS", cfg.WorkerPoll)
	cfg.WorkerStaleAfter = envutil.Seconds("WORKER_STALE_AFTER_SECONDS", cfg.WorkerStaleAfter)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
