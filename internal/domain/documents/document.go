package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessingStatus string

const (
	StatusUploaded   ProcessingStatus = "uploaded"
	StatusExtracting ProcessingStatus = "extracting"
	StatusAnalyzing  ProcessingStatus = "analyzing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further forward transition exists from s.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// Transitions lists the legal predecessor states of each processing status.
// Moving back to uploaded is the explicit reanalysis restart.
var Transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusExtracting: {StatusUploaded},
	StatusAnalyzing:  {StatusExtracting},
	StatusCompleted:  {StatusAnalyzing},
	StatusFailed:     {StatusUploaded, StatusExtracting, StatusAnalyzing},
	StatusUploaded:   {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to ProcessingStatus) bool {
	for _, s := range Transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

type Document struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	StoredFilename       string           `gorm:"column:stored_filename;not null" json:"stored_filename"`
	OriginalFilename     string           `gorm:"column:original_filename;not null" json:"original_filename"`
	FileType             string           `gorm:"column:file_type;not null" json:"file_type"`
	SizeBytes            int64            `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	StoragePath          string           `gorm:"column:storage_path;not null" json:"storage_path"`
	ProcessingStatus     ProcessingStatus `gorm:"column:processing_status;not null;index" json:"processing_status"`
	TextExtractionStatus ExtractionStatus `gorm:"column:text_extraction_status;not null" json:"text_extraction_status"`
	ExtractedText        *string          `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	ExtractionMethod     string           `gorm:"column:extraction_method" json:"extraction_method,omitempty"`
	ExtractionError      *string          `gorm:"column:extraction_error" json:"extraction_error,omitempty"`
	ProcessingError      *string          `gorm:"column:processing_error" json:"processing_error,omitempty"`
	CreatedAt            time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"not null" json:"updated_at"`
	DeletedAt            gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ProcessingStatus == "" {
		d.ProcessingStatus = StatusUploaded
	}
	if d.TextExtractionStatus == "" {
		d.TextExtractionStatus = ExtractionPending
	}
	return nil
}

// HasText reports whether the document carries completed extraction output.
func (d *Document) HasText() bool {
	return d != nil && d.TextExtractionStatus == ExtractionCompleted && d.ExtractedText != nil
}
