package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnalysisType string

const (
	AnalysisSingle        AnalysisType = "single"
	AnalysisCrossDocument AnalysisType = "cross_document"
)

type AnalysisStatus string

const (
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

type Analysis struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	AnalysisType     AnalysisType   `gorm:"column:analysis_type;not null" json:"analysis_type"`
	Status           AnalysisStatus `gorm:"column:status;not null;index" json:"status"`
	Model            string         `gorm:"column:model" json:"model,omitempty"`
	Summary          string         `gorm:"column:summary;type:text" json:"summary,omitempty"`
	ConfidenceScore  float64        `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	RiskLevel        string         `gorm:"column:risk_level" json:"risk_level,omitempty"`
	ProcessingTimeMs int64          `gorm:"column:processing_time_ms;not null;default:0" json:"processing_time_ms"`
	RawResponse      datatypes.JSON `gorm:"column:raw_response;type:jsonb" json:"raw_response,omitempty"`
	DocumentIDs      datatypes.JSON `gorm:"column:document_ids;type:jsonb" json:"document_ids,omitempty"`
	Diagnostics      datatypes.JSON `gorm:"column:diagnostics;type:jsonb" json:"diagnostics,omitempty"`
	Error            string         `gorm:"column:error" json:"error,omitempty"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Analysis) TableName() string { return "analysis" }

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AnalysisProcessing
	}
	return nil
}
