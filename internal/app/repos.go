package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type Repos struct {
	Document      repos.DocumentRepo
	Analysis      repos.AnalysisRepo
	Finding       repos.FindingRepo
	ProcessingJob repos.ProcessingJobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Document:      repos.NewDocumentRepo(db, log),
		Analysis:      repos.NewAnalysisRepo(db, log),
		Finding:       repos.NewFindingRepo(db, log),
		ProcessingJob: repos.NewProcessingJobRepo(db, log),
	}
}
