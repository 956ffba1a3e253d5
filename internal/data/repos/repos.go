package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/repos/documents"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type DocumentRepo = documents.DocumentRepo
type AnalysisRepo = documents.AnalysisRepo
type FindingRepo = documents.FindingRepo
type ProcessingJobRepo = documents.ProcessingJobRepo

type FailureStage = documents.FailureStage

const (
	StageExtraction = documents.StageExtraction
	StageAnalysis   = documents.StageAnalysis
)

var ErrInvalidTransition = documents.ErrInvalidTransition

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return documents.NewDocumentRepo(db, log)
}

func NewAnalysisRepo(db *gorm.DB, log *logger.Logger) AnalysisRepo {
	return documents.NewAnalysisRepo(db, log)
}

func NewFindingRepo(db *gorm.DB, log *logger.Logger) FindingRepo {
	return documents.NewFindingRepo(db, log)
}

func NewProcessingJobRepo(db *gorm.DB, log *logger.Logger) ProcessingJobRepo {
	return documents.NewProcessingJobRepo(db, log)
}
