package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	"github.com/yungbote/docsentinel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/analysis"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/extractor"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
	"github.com/yungbote/docsentinel-backend/internal/platform/lock"
)

const (
	emptySingleReply = `{"contradictions":[],"summary":"No issues","riskLevel":"low","confidenceScore":0.95}`
	emptyCrossReply  = `{"crossDocumentContradictions":[],"summary":"Consistent","riskLevel":"low","confidenceScore":0.9}`
)

type scriptedBackend struct {
	mu     sync.Mutex
	reply  string
	err    error
	block  bool
	delay  time.Duration
	onCall func()
	calls  int
}

func (b *scriptedBackend) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.onCall != nil {
		b.onCall()
	}
	return b.reply, b.err
}

func (b *scriptedBackend) Model() string { return "test-model" }

type processingFixture struct {
	db      *gorm.DB
	svc     DocumentProcessingService
	backend *scriptedBackend
	store   filestore.Store
	locker  *lock.LocalLocker
	docs    repos.DocumentRepo
	anas    repos.AnalysisRepo
	finds   repos.FindingRepo
	jobs    repos.ProcessingJobRepo
	userID  uuid.UUID
}

func newProcessingFixture(t *testing.T, reply string, cfg ProcessingConfig) *processingFixture {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	store, err := filestore.NewLocalStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	backend := &scriptedBackend{reply: reply}
	analyzer, err := analysis.New(log, backend, analysis.Config{})
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	f := &processingFixture{
		db:      db,
		backend: backend,
		store:   store,
		locker:  lock.NewLocalLocker(),
		docs:    repos.NewDocumentRepo(db, log),
		anas:    repos.NewAnalysisRepo(db, log),
		finds:   repos.NewFindingRepo(db, log),
		jobs:    repos.NewProcessingJobRepo(db, log),
		userID:  uuid.New(),
	}
	f.svc = NewDocumentProcessingService(db, log, f.docs, f.anas, f.finds, f.jobs, store, extractor.New(log), analyzer, f.locker, cfg)
	return f
}

func textFile(name, body string) UploadedFile {
	return UploadedFile{
		OriginalName: name,
		SizeBytes:    int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func (f *processingFixture) ingest(t *testing.T, mode string, files ...UploadedFile) *IngestResult {
	t.Helper()
	res, err := f.svc.Ingest(context.Background(), f.userID, files, mode)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return res
}

func (f *processingFixture) document(t *testing.T, id uuid.UUID) *types.Document {
	t.Helper()
	d, err := f.docs.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return d
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		mode    string
		files   int
		want    types.AnalysisType
		wantErr bool
	}{
		{"", 1, types.AnalysisSingle, false},
		{"", 3, types.AnalysisCrossDocument, false},
		{"single", 3, types.AnalysisSingle, false},
		{"cross_document", 1, types.AnalysisSingle, false},
		{"CROSS_DOCUMENT", 2, types.AnalysisCrossDocument, false},
		{"pairwise", 2, "", true},
	}
	for _, tc := range cases {
		got, err := ResolveMode(tc.mode, tc.files)
		if tc.wantErr {
			if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
				t.Fatalf("ResolveMode(%q,%d) err=%v", tc.mode, tc.files, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ResolveMode(%q,%d)=%q,%v want %q", tc.mode, tc.files, got, err, tc.want)
		}
	}
}

func TestIngestStoresFilesAndQueuesJob(t *testing.T) {
	f := newProcessingFixture(t, emptyCrossReply, ProcessingConfig{})
	res := f.ingest(t, "", textFile("a.txt", "alpha"), textFile("b.txt", "beta"))

	if res.Job.JobType != types.AnalysisCrossDocument || res.Job.Status != types.JobQueued {
		t.Fatalf("job=%+v", res.Job)
	}
	ids, err := res.Job.DocumentIDList()
	if err != nil || len(ids) != 2 {
		t.Fatalf("job ids=%v err=%v", ids, err)
	}
	for i, d := range res.Documents {
		if ids[i] != d.ID {
			t.Fatalf("job order mismatch at %d", i)
		}
		stored := f.document(t, d.ID)
		if stored.ProcessingStatus != types.DocumentStatusUploaded || stored.TextExtractionStatus != types.ExtractionPending {
			t.Fatalf("status=%s/%s", stored.ProcessingStatus, stored.TextExtractionStatus)
		}
		if stored.FileType != "text/plain" {
			t.Fatalf("file type=%q", stored.FileType)
		}
		if _, err := os.Stat(stored.StoragePath); err != nil {
			t.Fatalf("stored file missing: %v", err)
		}
	}
}

func TestIngestRejectsEmptyAndAnonymous(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	if _, err := f.svc.Ingest(context.Background(), f.userID, nil, ""); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("empty upload err=%v", err)
	}
	if _, err := f.svc.Ingest(context.Background(), uuid.Nil, []UploadedFile{textFile("a.txt", "x")}, ""); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("anonymous err=%v", err)
	}
}

func TestIngestCleansUpOnFailure(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{UploadConcurrency: 1})
	broken := UploadedFile{
		OriginalName: "broken.txt",
		Open:         func() (io.ReadCloser, error) { return nil, errors.New("disk gone") },
	}
	if _, err := f.svc.Ingest(context.Background(), f.userID, []UploadedFile{textFile("ok.txt", "fine"), broken}, "single"); err == nil {
		t.Fatalf("expected error")
	}
	var count int64
	f.db.Model(&types.Document{}).Count(&count)
	if count != 0 {
		t.Fatalf("documents persisted: %d", count)
	}
}

func TestProcessDocumentGuaranteesFindings(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := f.ingest(t, "single", textFile("invoice.txt", "Invoice total $15,000 versus approved $12,500."))
	docID := res.Documents[0].ID

	row, err := f.svc.ProcessDocument(context.Background(), docID)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	doc := f.document(t, docID)
	if doc.ProcessingStatus != types.DocumentStatusCompleted || !doc.HasText() {
		t.Fatalf("doc status=%s text=%v", doc.ProcessingStatus, doc.HasText())
	}
	stored, err := f.anas.GetByID(dbctx.Context{Ctx: context.Background()}, row.ID)
	if err != nil {
		t.Fatalf("GetByID analysis: %v", err)
	}
	if stored.Status != types.AnalysisCompleted || stored.AnalysisType != types.AnalysisSingle || stored.CompletedAt == nil {
		t.Fatalf("analysis=%+v", stored)
	}
	if stored.ConfidenceScore < 0 || stored.ConfidenceScore > 1 {
		t.Fatalf("confidence=%v", stored.ConfidenceScore)
	}
	findings, err := f.finds.ListByDocument(dbctx.Context{Ctx: context.Background()}, docID)
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(findings) == 0 || findings[0].Type != "budget" {
		t.Fatalf("findings=%+v", findings)
	}
	if len(findings[0].Deliverable) == 0 {
		t.Fatalf("deliverable not stored")
	}
}

func TestProcessDocumentUnsupportedTypeFails(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	exe := textFile("setup.exe", "MZ\x90\x00")
	exe.ContentType = "application/octet-stream"
	res := f.ingest(t, "single", exe)
	docID := res.Documents[0].ID

	_, err := f.svc.ProcessDocument(context.Background(), docID)
	if !errors.Is(err, extractor.ErrUnsupportedFileType) {
		t.Fatalf("err=%v", err)
	}
	doc := f.document(t, docID)
	if doc.ProcessingStatus != types.DocumentStatusFailed || doc.TextExtractionStatus != types.ExtractionFailed {
		t.Fatalf("status=%s/%s", doc.ProcessingStatus, doc.TextExtractionStatus)
	}
	if doc.ExtractionError == nil || !strings.Contains(*doc.ExtractionError, "unsupported file type") {
		t.Fatalf("extraction error=%v", doc.ExtractionError)
	}
	if f.backend.calls != 0 {
		t.Fatalf("backend called for unsupported file")
	}
}

func TestProcessDocumentDoesNotRegress(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := f.ingest(t, "single", textFile("a.txt", "Invoice total $15,000 versus approved $12,500."))
	docID := res.Documents[0].ID
	if _, err := f.svc.ProcessDocument(context.Background(), docID); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if _, err := f.svc.ProcessDocument(context.Background(), docID); !errors.Is(err, repos.ErrInvalidTransition) {
		t.Fatalf("second run err=%v", err)
	}
	if got := f.document(t, docID).ProcessingStatus; got != types.DocumentStatusCompleted {
		t.Fatalf("status regressed to %s", got)
	}
}

func TestProcessBatchBudgetConflict(t *testing.T) {
	f := newProcessingFixture(t, emptyCrossReply, ProcessingConfig{})
	res := f.ingest(t, "cross_document",
		textFile("proposal.txt", "Total project cost: $180,000"),
		textFile("invoice.txt", "Amount due: $165,000"),
	)
	first, second := res.Documents[0].ID, res.Documents[1].ID

	row, err := f.svc.ProcessBatch(context.Background(), []uuid.UUID{first, second})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if row.AnalysisType != types.AnalysisCrossDocument || row.DocumentID != first {
		t.Fatalf("analysis=%+v", row)
	}
	findings, err := f.finds.ListByAnalysis(dbctx.Context{Ctx: context.Background()}, row.ID)
	if err != nil {
		t.Fatalf("ListByAnalysis: %v", err)
	}
	if len(findings) != 1 || findings[0].Type != "budget" || findings[0].Severity != "critical" {
		t.Fatalf("findings=%+v", findings)
	}
	var meta struct {
		DocumentIDs []uuid.UUID `json:"documentIds"`
	}
	if err := json.Unmarshal(findings[0].Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if len(meta.DocumentIDs) != 2 || meta.DocumentIDs[0] != first || meta.DocumentIDs[1] != second {
		t.Fatalf("metadata ids=%v", meta.DocumentIDs)
	}
	for _, id := range []uuid.UUID{first, second} {
		if got := f.document(t, id).ProcessingStatus; got != types.DocumentStatusCompleted {
			t.Fatalf("document %s status=%s", id, got)
		}
	}
	listed, err := f.anas.ListByDocument(dbctx.Context{Ctx: context.Background()}, first)
	if err != nil || len(listed) != 1 {
		t.Fatalf("analyses by document=%d err=%v", len(listed), err)
	}
}

func TestProcessBatchIsolatesExtractionFailures(t *testing.T) {
	f := newProcessingFixture(t, emptyCrossReply, ProcessingConfig{})
	exe := textFile("tool.exe", "MZ")
	exe.ContentType = "application/octet-stream"
	res := f.ingest(t, "cross_document",
		textFile("a.txt", "Budget approved at $50,000"),
		exe,
		textFile("c.txt", "Budget approved at $42,000"),
	)
	ids := []uuid.UUID{res.Documents[0].ID, res.Documents[1].ID, res.Documents[2].ID}

	row, err := f.svc.ProcessBatch(context.Background(), ids)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	var members []uuid.UUID
	if err := json.Unmarshal(row.DocumentIDs, &members); err != nil {
		t.Fatalf("document ids: %v", err)
	}
	if len(members) != 2 || members[0] != ids[0] || members[1] != ids[2] {
		t.Fatalf("members=%v", members)
	}
	want := []types.ProcessingStatus{types.DocumentStatusCompleted, types.DocumentStatusFailed, types.DocumentStatusCompleted}
	for i, id := range ids {
		if got := f.document(t, id).ProcessingStatus; got != want[i] {
			t.Fatalf("doc %d status=%s want %s", i, got, want[i])
		}
	}
}

func TestProcessBatchSingleSurvivorFallsBack(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	exe := textFile("tool.exe", "MZ")
	exe.ContentType = "application/octet-stream"
	res := f.ingest(t, "cross_document", textFile("a.txt", "Invoice total $15,000 versus approved $12,500."), exe)

	row, err := f.svc.ProcessBatch(context.Background(), []uuid.UUID{res.Documents[0].ID, res.Documents[1].ID})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if row.AnalysisType != types.AnalysisSingle || row.DocumentID != res.Documents[0].ID {
		t.Fatalf("analysis=%+v", row)
	}
}

func TestProcessBatchBackendFailureFailsSurvivors(t *testing.T) {
	f := newProcessingFixture(t, "", ProcessingConfig{})
	f.backend.err = errors.New("connection reset")
	res := f.ingest(t, "cross_document", textFile("a.txt", "one"), textFile("b.txt", "two"))
	ids := []uuid.UUID{res.Documents[0].ID, res.Documents[1].ID}

	if _, err := f.svc.ProcessBatch(context.Background(), ids); err == nil {
		t.Fatalf("expected error")
	}
	for _, id := range ids {
		doc := f.document(t, id)
		if doc.ProcessingStatus != types.DocumentStatusFailed || doc.ProcessingError == nil {
			t.Fatalf("doc=%s err=%v", doc.ProcessingStatus, doc.ProcessingError)
		}
	}
	var failed int64
	f.db.Model(&types.Analysis{}).Where("status = ?", types.AnalysisFailed).Count(&failed)
	if failed != 1 {
		t.Fatalf("failed analyses=%d", failed)
	}
}

func TestAnalysisTimeoutFailsDocument(t *testing.T) {
	f := newProcessingFixture(t, "", ProcessingConfig{AnalysisTimeout: 20 * time.Millisecond})
	f.backend.block = true
	res := f.ingest(t, "single", textFile("slow.txt", "anything"))

	_, err := f.svc.ProcessDocument(context.Background(), res.Documents[0].ID)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err=%v", err)
	}
	if got := f.document(t, res.Documents[0].ID).ProcessingStatus; got != types.DocumentStatusFailed {
		t.Fatalf("status=%s", got)
	}
}

func TestRunJobCompletesWithAnalysis(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := f.ingest(t, "single", textFile("a.txt", "Invoice total $15,000 versus approved $12,500."))

	if err := f.svc.RunJob(context.Background(), res.Job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	job, err := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, res.Job.ID)
	if err != nil {
		t.Fatalf("GetByID job: %v", err)
	}
	if job.Status != types.JobCompleted || job.AnalysisID == nil || job.Attempts != 1 || job.FinishedAt == nil {
		t.Fatalf("job=%+v", job)
	}
	// Finished jobs are left alone.
	if err := f.svc.RunJob(context.Background(), res.Job.ID); err != nil {
		t.Fatalf("rerun: %v", err)
	}
}

func TestRunJobFailsWhenEveryDocumentFails(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	exe := textFile("tool.exe", "MZ")
	exe.ContentType = "application/octet-stream"
	res := f.ingest(t, "single", exe)

	if err := f.svc.RunJob(context.Background(), res.Job.ID); !errors.Is(err, extractor.ErrUnsupportedFileType) {
		t.Fatalf("RunJob err=%v", err)
	}
	job, _ := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, res.Job.ID)
	if job.Status != types.JobFailed || !strings.Contains(job.Error, "unsupported file type") {
		t.Fatalf("job=%+v", job)
	}
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := f.ingest(t, "single", textFile("a.txt", "text"))
	lease, err := f.locker.Acquire(context.Background(), "processing_job:"+res.Job.ID.String(), time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release(context.Background())

	if err := f.svc.RunJob(context.Background(), res.Job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if f.backend.calls != 0 {
		t.Fatalf("job ran while locked")
	}
	if got := f.document(t, res.Documents[0].ID).ProcessingStatus; got != types.DocumentStatusUploaded {
		t.Fatalf("status=%s", got)
	}
}

func TestReanalyzeQueuesPriorityJob(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{})
	res := f.ingest(t, "single", textFile("a.txt", "Invoice total $15,000 versus approved $12,500."))
	docID := res.Documents[0].ID

	if _, err := f.svc.Reanalyze(context.Background(), f.userID, docID); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("reanalyze before processing err=%v", err)
	}
	if _, err := f.svc.ProcessDocument(context.Background(), docID); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if _, err := f.svc.Reanalyze(context.Background(), uuid.New(), docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("foreign user err=%v", err)
	}

	job, err := f.svc.Reanalyze(context.Background(), f.userID, docID)
	if err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	if job.Priority != 1 || job.JobType != types.AnalysisSingle || job.Status != types.JobQueued {
		t.Fatalf("job=%+v", job)
	}
	doc := f.document(t, docID)
	if doc.ProcessingStatus != types.DocumentStatusUploaded || doc.ExtractedText != nil {
		t.Fatalf("doc not reset: %s", doc.ProcessingStatus)
	}
	if err := f.svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	n, err := f.finds.CountByDocument(dbctx.Context{Ctx: context.Background()}, docID)
	if err != nil || n < 2 {
		t.Fatalf("findings after reanalysis=%d err=%v", n, err)
	}
}

func TestRunJobRecoversInterruptedDocuments(t *testing.T) {
	f := newProcessingFixture(t, emptyCrossReply, ProcessingConfig{})
	res := f.ingest(t, "cross_document", textFile("a.txt", "Budget approved at $50,000"), textFile("b.txt", "Budget approved at $42,000"))
	dbc := dbctx.Context{Ctx: context.Background()}
	// A previous run died after starting extraction.
	for _, d := range res.Documents {
		if err := f.docs.MarkExtracting(dbc, d.ID); err != nil {
			t.Fatalf("MarkExtracting: %v", err)
		}
	}

	if err := f.svc.RunJob(context.Background(), res.Job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	job, _ := f.jobs.GetByID(dbc, res.Job.ID)
	if job.Status != types.JobCompleted {
		t.Fatalf("job=%s err=%q", job.Status, job.Error)
	}
	for _, d := range res.Documents {
		if got := f.document(t, d.ID).ProcessingStatus; got != types.DocumentStatusCompleted {
			t.Fatalf("doc %s status=%s", d.OriginalFilename, got)
		}
	}
	if _, err := f.svc.Reanalyze(context.Background(), f.userID, res.Documents[0].ID); err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
}

func TestProcessBatchFailsMembersItCannotStart(t *testing.T) {
	f := newProcessingFixture(t, emptyCrossReply, ProcessingConfig{})
	res := f.ingest(t, "cross_document", textFile("a.txt", "one"), textFile("b.txt", "two"))
	dbc := dbctx.Context{Ctx: context.Background()}
	ids := []uuid.UUID{res.Documents[0].ID, res.Documents[1].ID}
	for _, id := range ids {
		_ = f.docs.MarkExtracting(dbc, id)
	}
	_ = f.docs.MarkExtracted(dbc, ids[1], "two", "primary")

	if _, err := f.svc.ProcessBatch(context.Background(), ids); err == nil {
		t.Fatalf("expected error")
	}
	for _, id := range ids {
		doc := f.document(t, id)
		if doc.ProcessingStatus != types.DocumentStatusFailed {
			t.Fatalf("doc %s left %s", doc.OriginalFilename, doc.ProcessingStatus)
		}
	}
	if _, err := f.svc.Reanalyze(context.Background(), f.userID, ids[0]); err != nil {
		t.Fatalf("failed document should be reanalyzable: %v", err)
	}
	if f.backend.calls != 0 {
		t.Fatalf("backend called for a batch that never extracted")
	}
}

func TestRunJobHeartbeatsWhileRunning(t *testing.T) {
	f := newProcessingFixture(t, emptySingleReply, ProcessingConfig{
		LockTTL:           200 * time.Millisecond,
		HeartbeatInterval: 10 * time.Millisecond,
	})
	f.backend.delay = 400 * time.Millisecond
	res := f.ingest(t, "single", textFile("a.txt", "Invoice total $15,000 versus approved $12,500."))

	var lockErr error
	f.backend.onCall = func() {
		// Past the original TTL; only extensions keep the lock held.
		_, lockErr = f.locker.Acquire(context.Background(), "processing_job:"+res.Job.ID.String(), time.Minute)
	}
	if err := f.svc.RunJob(context.Background(), res.Job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !errors.Is(lockErr, lock.ErrNotAcquired) {
		t.Fatalf("lock was not held through the run: %v", lockErr)
	}
	job, _ := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, res.Job.ID)
	if job.HeartbeatAt == nil || job.StartedAt == nil || !job.HeartbeatAt.After(*job.StartedAt) {
		t.Fatalf("heartbeat not refreshed: started=%v heartbeat=%v", job.StartedAt, job.HeartbeatAt)
	}
}
