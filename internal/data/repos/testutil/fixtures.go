package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string, status types.ProcessingStatus) *types.Document {
	tb.Helper()
	d := &types.Document{
		UserID:           userID,
		StoredFilename:   uuid.NewString() + "-" + name,
		OriginalFilename: name,
		FileType:         "text/plain",
		SizeBytes:        10,
		StoragePath:      "/tmp/" + name,
		ProcessingStatus: status,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedExtractedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name, text string) *types.Document {
	tb.Helper()
	d := &types.Document{
		UserID:               userID,
		StoredFilename:       uuid.NewString() + "-" + name,
		OriginalFilename:     name,
		FileType:             "text/plain",
		StoragePath:          "/tmp/" + name,
		ProcessingStatus:     types.DocumentStatusCompleted,
		TextExtractionStatus: types.ExtractionCompleted,
		ExtractedText:        &text,
		ExtractionMethod:     "primary",
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedAnalysis(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, kind types.AnalysisType) *types.Analysis {
	tb.Helper()
	a := &types.Analysis{
		DocumentID:   documentID,
		AnalysisType: kind,
		DocumentIDs:  types.EncodeIDs([]uuid.UUID{documentID}),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed analysis: %v", err)
	}
	return a
}

func SeedFinding(tb testing.TB, ctx context.Context, tx *gorm.DB, analysisID, documentID uuid.UUID, title string) *types.Finding {
	tb.Helper()
	f := &types.Finding{
		AnalysisID:  analysisID,
		DocumentID:  documentID,
		Type:        "budget",
		Severity:    "high",
		Title:       title,
		Description: "description",
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed finding: %v", err)
	}
	return f
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, docIDs []uuid.UUID, kind types.AnalysisType, priority int) *types.ProcessingJob {
	tb.Helper()
	j := &types.ProcessingJob{
		UserID:      userID,
		DocumentIDs: types.EncodeIDs(docIDs),
		JobType:     kind,
		Priority:    priority,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}
