package app

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/jobs/runtime"
	"github.com/yungbote/docsentinel-backend/internal/jobs/worker"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/analysis"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/extractor"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/heuristics"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Processing services.DocumentProcessingService
	Documents  services.DocumentService
	Exporter   services.FindingsExporter

	JobWorker *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	rules, err := loadRules(cfg.HeuristicsFile)
	if err != nil {
		return Services{}, err
	}
	analyzer, err := analysis.New(log, clients.Backend, analysis.Config{Rules: rules})
	if err != nil {
		return Services{}, fmt.Errorf("init analyzer: %w", err)
	}

	processing := services.NewDocumentProcessingService(
		db, log,
		reposet.Document, reposet.Analysis, reposet.Finding, reposet.ProcessingJob,
		clients.Store,
		extractor.New(log, clients.PDFParsers...),
		analyzer,
		clients.Locker,
		services.ProcessingConfig{
			AnalysisTimeout:       cfg.AnalysisTimeout,
			MaxConcurrentAnalyses: cfg.MaxConcurrentAnalyses,
			UploadConcurrency:     cfg.UploadConcurrency,
			MaxFilesPerUpload:     cfg.MaxFilesPerUpload,
		},
	)
	documents := services.NewDocumentService(
		db, log,
		reposet.Document, reposet.Analysis, reposet.Finding, reposet.ProcessingJob,
		clients.Store,
	)

	out := Services{
		Auth:       auth,
		Processing: processing,
		Documents:  documents,
		Exporter:   services.NewFindingsExporter(log, documents),
	}

	if cfg.RunWorker {
		registry := runtime.NewRegistry()
		if err := runtime.RegisterProcessing(registry, processing); err != nil {
			return Services{}, fmt.Errorf("register job handlers: %w", err)
		}
		out.JobWorker = worker.NewWorker(log, reposet.ProcessingJob, registry, worker.Config{
			Concurrency:  cfg.WorkerConcurrency,
			PollInterval: cfg.WorkerPoll,
			StaleAfter:   cfg.WorkerStaleAfter,
		})
	}
	return out, nil
}

func loadRules(path string) (*heuristics.Rules, error) {
	if strings.TrimSpace(path) == "" {
		return heuristics.DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read heuristics file: %w", err)
	}
	rules, err := heuristics.LoadRules(b)
	if err != nil {
		return nil, fmt.Errorf("heuristics file %s: %w", path, err)
	}
	return rules, nil
}
