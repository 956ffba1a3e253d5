package documents

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

var JobStatuses = []JobStatus{JobQueued, JobProcessing, JobCompleted, JobFailed}

type ProcessingJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	DocumentIDs datatypes.JSON `gorm:"column:document_ids;type:jsonb;not null" json:"document_ids"`
	JobType     AnalysisType   `gorm:"column:job_type;not null;index" json:"job_type"`
	Status      JobStatus      `gorm:"column:status;not null;index" json:"status"`
	Priority    int            `gorm:"column:priority;not null;default:0;index" json:"priority"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	AnalysisID  *uuid.UUID     `gorm:"type:uuid;column:analysis_id" json:"analysis_id,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (ProcessingJob) TableName() string { return "processing_job" }

func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobQueued
	}
	return nil
}

// DocumentIDList decodes DocumentIDs.
func (j *ProcessingJob) DocumentIDList() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(j.DocumentIDs) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(j.DocumentIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// EncodeIDs is the jsonb form used for DocumentIDs columns.
func EncodeIDs(ids []uuid.UUID) datatypes.JSON {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}
