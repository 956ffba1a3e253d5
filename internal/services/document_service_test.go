package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/docsentinel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/pointers"
)

type documentFixture struct {
	*processingFixture
	svc   DocumentService
	docID uuid.UUID
}

// newDocumentFixture processes one document so that it has an analysis and findings.
func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	pf := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := pf.ingest(t, "single", textFile("invoice.txt", "Invoice total $15,000 versus approved $12,500."))
	if _, err := pf.svc.ProcessDocument(context.Background(), res.Documents[0].ID); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	return &documentFixture{
		processingFixture: pf,
		svc:               NewDocumentService(pf.db, testutil.Logger(t), pf.docs, pf.anas, pf.finds, pf.jobs, pf.store),
		docID:             res.Documents[0].ID,
	}
}

func (f *documentFixture) firstFinding(t *testing.T) *types.Finding {
	t.Helper()
	findings, err := f.svc.ListFindingsByDocument(context.Background(), f.userID, f.docID)
	if err != nil || len(findings) == 0 {
		t.Fatalf("findings=%d err=%v", len(findings), err)
	}
	return findings[0]
}

func TestDocumentOwnership(t *testing.T) {
	f := newDocumentFixture(t)
	stranger := uuid.New()

	if _, err := f.svc.GetDocument(context.Background(), stranger, f.docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("GetDocument err=%v", err)
	}
	if _, err := f.svc.ListAnalyses(context.Background(), stranger, f.docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("ListAnalyses err=%v", err)
	}
	finding := f.firstFinding(t)
	if _, err := f.svc.ResolveFinding(context.Background(), stranger, finding.ID, "", nil); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("ResolveFinding err=%v", err)
	}
	if _, err := f.svc.ListFindingsByAnalysis(context.Background(), stranger, finding.AnalysisID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("ListFindingsByAnalysis err=%v", err)
	}
}

func TestListDocumentsAndAnalyses(t *testing.T) {
	f := newDocumentFixture(t)
	docs, err := f.svc.ListDocuments(context.Background(), f.userID, 0, 0)
	if err != nil || len(docs) != 1 || docs[0].ID != f.docID {
		t.Fatalf("docs=%v err=%v", docs, err)
	}
	analyses, err := f.svc.ListAnalyses(context.Background(), f.userID, f.docID)
	if err != nil || len(analyses) != 1 {
		t.Fatalf("analyses=%d err=%v", len(analyses), err)
	}
	findings, err := f.svc.ListFindingsByAnalysis(context.Background(), f.userID, analyses[0].ID)
	if err != nil || len(findings) == 0 {
		t.Fatalf("findings=%d err=%v", len(findings), err)
	}
}

func TestResolveFindingOnce(t *testing.T) {
	f := newDocumentFixture(t)
	finding := f.firstFinding(t)

	got, err := f.svc.ResolveFinding(context.Background(), f.userID, finding.ID, "", pointers.String("  checked with finance "))
	if err != nil {
		t.Fatalf("ResolveFinding: %v", err)
	}
	if got.Status != types.FindingResolved || got.ResolvedAt == nil {
		t.Fatalf("finding=%+v", got)
	}
	if got.ResolvedBy == nil || *got.ResolvedBy != f.userID.String() {
		t.Fatalf("resolved by=%v", got.ResolvedBy)
	}
	if got.ResolutionNotes == nil || *got.ResolutionNotes != "checked with finance" {
		t.Fatalf("notes=%v", got.ResolutionNotes)
	}
	if _, err := f.svc.ResolveFinding(context.Background(), f.userID, finding.ID, "", nil); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("second resolve err=%v", err)
	}
}

func TestUpdateFindingNormalizesSeverity(t *testing.T) {
	f := newDocumentFixture(t)
	finding := f.firstFinding(t)

	got, err := f.svc.UpdateFinding(context.Background(), f.userID, finding.ID, FindingUpdate{
		Title:    pointers.String(" Fee mismatch "),
		Severity: pointers.String("catastrophic"),
	})
	if err != nil {
		t.Fatalf("UpdateFinding: %v", err)
	}
	if got.Title != "Fee mismatch" || got.Severity != "medium" {
		t.Fatalf("title=%q severity=%q", got.Title, got.Severity)
	}
	got, err = f.svc.UpdateFinding(context.Background(), f.userID, finding.ID, FindingUpdate{Severity: pointers.String("HIGH")})
	if err != nil || got.Severity != "high" {
		t.Fatalf("severity=%q err=%v", got.Severity, err)
	}
	if _, err := f.svc.UpdateFinding(context.Background(), f.userID, finding.ID, FindingUpdate{}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("empty update err=%v", err)
	}
	if _, err := f.svc.UpdateFinding(context.Background(), f.userID, finding.ID, FindingUpdate{Title: pointers.String(" ")}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("blank title err=%v", err)
	}
}

func TestDeleteDocumentRemovesFile(t *testing.T) {
	f := newDocumentFixture(t)
	doc, err := f.svc.GetDocument(context.Background(), f.userID, f.docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if err := f.svc.DeleteDocument(context.Background(), f.userID, f.docID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := os.Stat(doc.StoragePath); !os.IsNotExist(err) {
		t.Fatalf("backing file still present: %v", err)
	}
	if _, err := f.svc.GetDocument(context.Background(), f.userID, f.docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("get after delete err=%v", err)
	}
}

func TestDeleteDocumentInFlightConflicts(t *testing.T) {
	pf := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := pf.ingest(t, "single", textFile("a.txt", "x"))
	if err := pf.docs.MarkExtracting(dbctx.Context{Ctx: context.Background()}, res.Documents[0].ID); err != nil {
		t.Fatalf("MarkExtracting: %v", err)
	}
	svc := NewDocumentService(pf.db, testutil.Logger(t), pf.docs, pf.anas, pf.finds, pf.jobs, pf.store)
	if err := svc.DeleteDocument(context.Background(), pf.userID, res.Documents[0].ID); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("err=%v", err)
	}
}

func TestGetJobScopedToUser(t *testing.T) {
	pf := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := pf.ingest(t, "single", textFile("a.txt", "x"))
	svc := NewDocumentService(pf.db, testutil.Logger(t), pf.docs, pf.anas, pf.finds, pf.jobs, pf.store)
	if job, err := svc.GetJob(context.Background(), pf.userID, res.Job.ID); err != nil || job.ID != res.Job.ID {
		t.Fatalf("job=%v err=%v", job, err)
	}
	if _, err := svc.GetJob(context.Background(), uuid.New(), res.Job.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("foreign job err=%v", err)
	}
}

func TestExportDocumentFindings(t *testing.T) {
	f := newDocumentFixture(t)
	exporter := NewFindingsExporter(testutil.Logger(t), f.svc)

	b, name, err := exporter.ExportDocumentFindings(context.Background(), f.userID, f.docID)
	if err != nil {
		t.Fatalf("ExportDocumentFindings: %v", err)
	}
	if name != "invoice.txt-findings.xlsx" {
		t.Fatalf("name=%q", name)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 2 || rows[0][0] != "Severity" || rows[1][1] != "budget" {
		t.Fatalf("rows=%v", rows)
	}

	if _, _, err := exporter.ExportDocumentFindings(context.Background(), uuid.New(), f.docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("foreign export err=%v", err)
	}
}
