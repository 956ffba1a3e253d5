package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FindingStatus string

const (
	FindingDetected FindingStatus = "detected"
	FindingResolved FindingStatus = "resolved"
)

type Finding struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"analysis_id"`
	DocumentID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	Type            string         `gorm:"column:type;not null;index" json:"type"`
	Severity        string         `gorm:"column:severity;not null;index" json:"severity"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	Description     string         `gorm:"column:description;type:text" json:"description"`
	PageNumber      *int           `gorm:"column:page_number" json:"page_number,omitempty"`
	LineNumber      *int           `gorm:"column:line_number" json:"line_number,omitempty"`
	TextSnippet     string         `gorm:"column:text_snippet;type:text" json:"text_snippet,omitempty"`
	PotentialImpact string         `gorm:"column:potential_impact;type:text" json:"potential_impact,omitempty"`
	Recommendation  string         `gorm:"column:recommendation;type:text" json:"recommendation,omitempty"`
	SuggestedFix    string         `gorm:"column:suggested_fix;type:text" json:"suggested_fix,omitempty"`
	FinancialImpact *string        `gorm:"column:financial_impact" json:"financial_impact,omitempty"`
	PreventedLoss   *string        `gorm:"column:prevented_loss" json:"prevented_loss,omitempty"`
	Status          FindingStatus  `gorm:"column:status;not null;index" json:"status"`
	ResolvedBy      *string        `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolutionNotes *string        `gorm:"column:resolution_notes;type:text" json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	Source          string         `gorm:"column:source" json:"source,omitempty"`
	Metadata        datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Deliverable     datatypes.JSON `gorm:"column:deliverable;type:jsonb" json:"deliverable,omitempty"`
	Highlight       datatypes.JSON `gorm:"column:highlight;type:jsonb" json:"highlight,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Finding) TableName() string { return "finding" }

func (f *Finding) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = FindingDetected
	}
	return nil
}
