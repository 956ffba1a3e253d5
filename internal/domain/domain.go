package domain

import (
	"github.com/yungbote/docsentinel-backend/internal/domain/documents"
)

type (
	Document         = documents.Document
	ProcessingStatus = documents.ProcessingStatus
	ExtractionStatus = documents.ExtractionStatus
	Analysis         = documents.Analysis
	AnalysisType     = documents.AnalysisType
	AnalysisStatus   = documents.AnalysisStatus
	Finding          = documents.Finding
	FindingStatus    = documents.FindingStatus
	ProcessingJob    = documents.ProcessingJob
	JobStatus        = documents.JobStatus
)

const (
	DocumentStatusUploaded   = documents.StatusUploaded
	DocumentStatusExtracting = documents.StatusExtracting
	DocumentStatusAnalyzing  = documents.StatusAnalyzing
	DocumentStatusCompleted  = documents.StatusCompleted
	DocumentStatusFailed     = documents.StatusFailed

	ExtractionPending    = documents.ExtractionPending
	ExtractionProcessing = documents.ExtractionProcessing
	ExtractionCompleted  = documents.ExtractionCompleted
	ExtractionFailed     = documents.ExtractionFailed

	AnalysisSingle        = documents.AnalysisSingle
	AnalysisCrossDocument = documents.AnalysisCrossDocument

	AnalysisProcessing = documents.AnalysisProcessing
	AnalysisCompleted  = documents.AnalysisCompleted
	AnalysisFailed     = documents.AnalysisFailed

	FindingDetected = documents.FindingDetected
	FindingResolved = documents.FindingResolved

	JobQueued     = documents.JobQueued
	JobProcessing = documents.JobProcessing
	JobCompleted  = documents.JobCompleted
	JobFailed     = documents.JobFailed
)

var (
	JobStatuses   = documents.JobStatuses
	CanTransition = documents.CanTransition
	EncodeIDs     = documents.EncodeIDs
)

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{&Document{}, &Analysis{}, &Finding{}, &ProcessingJob{}}
}
