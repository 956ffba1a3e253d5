package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/analysis"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/extractor"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
	"github.com/yungbote/docsentinel-backend/internal/platform/lock"
)

// TextExtractor turns a stored file into text.
type TextExtractor interface {
	Supports(declaredType string) bool
	Extract(ctx context.Context, path, declaredType string) (extractor.Result, error)
}

// ContradictionAnalyzer is the reasoning side of the pipeline.
type ContradictionAnalyzer interface {
	Analyze(ctx context.Context, text string, dc analysis.DocumentContext) (*analysis.Result, error)
	AnalyzeCrossDocument(ctx context.Context, docs []analysis.DocumentText) (*analysis.CrossResult, error)
	Model() string
}

// UploadedFile is one file handed to Ingest. Open is called once.
type UploadedFile struct {
	OriginalName string
	ContentType  string
	SizeBytes    int64
	Open         func() (io.ReadCloser, error)
}

type IngestResult struct {
	Job       *types.ProcessingJob
	Documents []*types.Document
}

type ProcessingConfig struct {
	AnalysisTimeout       time.Duration
	MaxConcurrentAnalyses int
	UploadConcurrency     int
	MaxFilesPerUpload     int
	LockTTL               time.Duration
	// HeartbeatInterval is how often a running job refreshes its row and lock.
	HeartbeatInterval time.Duration
}

func (c ProcessingConfig) withDefaults() ProcessingConfig {
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 3 * time.Minute
	}
	if c.MaxConcurrentAnalyses <= 0 {
		c.MaxConcurrentAnalyses = 4
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 4
	}
	if c.MaxFilesPerUpload <= 0 {
		c.MaxFilesPerUpload = 10
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.AnalysisTimeout + 2*time.Minute
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval > c.LockTTL/3 {
		c.HeartbeatInterval = min(30*time.Second, c.LockTTL/3)
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Second
	}
	return c
}

type DocumentProcessingService interface {
	Ingest(ctx context.Context, userID uuid.UUID, files []UploadedFile, mode string) (*IngestResult, error)
	ProcessDocument(ctx context.Context, documentID uuid.UUID) (*types.Analysis, error)
	ProcessBatch(ctx context.Context, documentIDs []uuid.UUID) (*types.Analysis, error)
	RunJob(ctx context.Context, jobID uuid.UUID) error
	Reanalyze(ctx context.Context, userID, documentID uuid.UUID) (*types.ProcessingJob, error)
}

type documentProcessingService struct {
	db           *gorm.DB
	log          *logger.Logger
	documentRepo repos.DocumentRepo
	analysisRepo repos.AnalysisRepo
	findingRepo  repos.FindingRepo
	jobRepo      repos.ProcessingJobRepo
	store        filestore.Store
	extractor    TextExtractor
	analyzer     ContradictionAnalyzer
	locker       lock.Locker
	cfg          ProcessingConfig
	backendSlots *semaphore.Weighted
}

func NewDocumentProcessingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	documentRepo repos.DocumentRepo,
	analysisRepo repos.AnalysisRepo,
	findingRepo repos.FindingRepo,
	jobRepo repos.ProcessingJobRepo,
	store filestore.Store,
	textExtractor TextExtractor,
	analyzer ContradictionAnalyzer,
	locker lock.Locker,
	cfg ProcessingConfig,
) DocumentProcessingService {
	cfg = cfg.withDefaults()
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &documentProcessingService{
		db:           db,
		log:          baseLog.With("service", "DocumentProcessingService"),
		documentRepo: documentRepo,
		analysisRepo: analysisRepo,
		findingRepo:  findingRepo,
		jobRepo:      jobRepo,
		store:        store,
		extractor:    textExtractor,
		analyzer:     analyzer,
		locker:       locker,
		cfg:          cfg,
		backendSlots: semaphore.NewWeighted(int64(cfg.MaxConcurrentAnalyses)),
	}
}

// =====================================
// Ingest
// =====================================

// ResolveMode applies the upload defaults: one file is always single, several
// files default to cross_document.
func ResolveMode(mode string, fileCount int) (types.AnalysisType, error) {
	switch types.AnalysisType(strings.ToLower(strings.TrimSpace(mode))) {
	case "":
		if fileCount > 1 {
			return types.AnalysisCrossDocument, nil
		}
		return types.AnalysisSingle, nil
	case types.AnalysisSingle:
		return types.AnalysisSingle, nil
	case types.AnalysisCrossDocument:
		if fileCount < 2 {
			return types.AnalysisSingle, nil
		}
		return types.AnalysisCrossDocument, nil
	default:
		return "", fmt.Errorf("%w: unknown analysis mode %q", pkgerrors.ErrInvalidArgument, mode)
	}
}

func (s *documentProcessingService) Ingest(ctx context.Context, userID uuid.UUID, files []UploadedFile, mode string) (*IngestResult, error) {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", pkgerrors.ErrUnauthorized)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", pkgerrors.ErrInvalidArgument)
	}
	if len(files) > s.cfg.MaxFilesPerUpload {
		return nil, fmt.Errorf("%w: at most %d files per upload", pkgerrors.ErrInvalidArgument, s.cfg.MaxFilesPerUpload)
	}
	jobType, err := ResolveMode(mode, len(files))
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "documents.Ingest",
		attribute.Int("ingest.files", len(files)),
		attribute.String("ingest.mode", string(jobType)),
	)
	defer func() { observability.EndSpan(span, err) }()

	docs := make([]*types.Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for i := range files {
		i, f := i, files[i]
		g.Go(func() error {
			doc, err := s.storeUpload(gctx, userID, f)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		s.discardStored(docs)
		s.log.Warn("ingest upload failed", "user_id", userID, "error", err)
		return nil, err
	}

	ids := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		d.ID = uuid.New()
		ids[i] = d.ID
	}
	job := &types.ProcessingJob{
		UserID:      userID,
		DocumentIDs: types.EncodeIDs(ids),
		JobType:     jobType,
		Status:      types.JobQueued,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.documentRepo.Create(dbc, docs); err != nil {
			return fmt.Errorf("create documents: %w", err)
		}
		if _, err := s.jobRepo.Create(dbc, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discardStored(docs)
		s.log.Error("ingest persist failed", "user_id", userID, "error", err)
		return nil, err
	}

	s.log.Info("ingested upload", "user_id", userID, "job_id", job.ID, "documents", len(docs), "job_type", jobType)
	return &IngestResult{Job: job, Documents: docs}, nil
}

func (s *documentProcessingService) storeUpload(ctx context.Context, userID uuid.UUID, f UploadedFile) (*types.Document, error) {
	name := strings.TrimSpace(filepath.Base(f.OriginalName))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file without a name", pkgerrors.ErrInvalidArgument)
	}
	if f.Open == nil {
		return nil, fmt.Errorf("%w: %s has no content", pkgerrors.ErrInvalidArgument, name)
	}
	contentType := strings.TrimSpace(f.ContentType)
	if contentType == "" {
		contentType = filestore.ContentTypeForKey(name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	key := filestore.ObjectKey(userID, name)
	storagePath, err := s.store.Save(ctx, key, rc, f.SizeBytes, contentType)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	return &types.Document{
		UserID:               userID,
		StoredFilename:       path.Base(key),
		OriginalFilename:     name,
		FileType:             contentType,
		SizeBytes:            f.SizeBytes,
		StoragePath:          storagePath,
		ProcessingStatus:     types.DocumentStatusUploaded,
		TextExtractionStatus: types.ExtractionPending,
	}, nil
}

func (s *documentProcessingService) discardStored(docs []*types.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, d := range docs {
		if d == nil || d.StoragePath == "" {
			continue
		}
		if err := s.store.Delete(ctx, d.StoragePath); err != nil {
			s.log.Warn("discard stored upload failed", "storage_path", d.StoragePath, "error", err)
		}
	}
}

// =====================================
// Single document
// =====================================

func (s *documentProcessingService) ProcessDocument(ctx context.Context, documentID uuid.UUID) (out *types.Analysis, err error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := observability.StartSpan(ctx, "documents.ProcessDocument", attribute.String("document.id", documentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	doc, err := s.documentRepo.GetByID(dbctx.Context{Ctx: ctx}, documentID)
	if err != nil {
		return nil, err
	}
	text, err := s.extractDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.analyzeSingle(ctx, doc, text)
}

// declaredType prefers the declared MIME type and falls back to the original
// filename when the declared type is generic.
func (s *documentProcessingService) declaredType(doc *types.Document) string {
	if s.extractor.Supports(doc.FileType) {
		return doc.FileType
	}
	if ext := strings.TrimPrefix(filepath.Ext(doc.OriginalFilename), "."); ext != "" && s.extractor.Supports(ext) {
		return ext
	}
	return doc.FileType
}

// extractDocument runs uploaded -> extracting -> analyzing. Any error on the
// way leaves the document failed; a terminal document is left as it is.
func (s *documentProcessingService) extractDocument(ctx context.Context, doc *types.Document) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	declared := s.declaredType(doc)
	if !s.extractor.Supports(declared) {
		err := fmt.Errorf("%w: %q", extractor.ErrUnsupportedFileType, doc.FileType)
		s.failDocument(ctx, doc.ID, repos.StageExtraction, err)
		return "", err
	}

	if err := s.documentRepo.MarkExtracting(dbc, doc.ID); err != nil {
		err = fmt.Errorf("mark extracting: %w", err)
		s.failDocument(ctx, doc.ID, repos.StageExtraction, err)
		return "", err
	}

	localPath, cleanup, err := s.store.LocalPath(ctx, doc.StoragePath)
	if err != nil {
		err = fmt.Errorf("fetch stored file: %w", err)
		s.failDocument(ctx, doc.ID, repos.StageExtraction, err)
		return "", err
	}
	defer cleanup()

	res, err := s.extractor.Extract(ctx, localPath, declared)
	if err != nil {
		s.failDocument(ctx, doc.ID, repos.StageExtraction, err)
		return "", err
	}
	observability.Current().ObserveExtraction(string(extractor.Classify(declared)), string(res.Method), res.Parser, len(res.Text))

	if err := s.documentRepo.MarkExtracted(dbc, doc.ID, res.Text, string(res.Method)); err != nil {
		err = fmt.Errorf("mark extracted: %w", err)
		s.failDocument(ctx, doc.ID, repos.StageExtraction, err)
		return "", err
	}
	s.log.Debug("document extracted", "document_id", doc.ID, "method", res.Method, "parser", res.Parser, "chars", len(res.Text))
	return res.Text, nil
}

func (s *documentProcessingService) analyzeSingle(ctx context.Context, doc *types.Document, text string) (*types.Analysis, error) {
	row, err := s.analysisRepo.Create(dbctx.Context{Ctx: ctx}, &types.Analysis{
		DocumentID:   doc.ID,
		AnalysisType: types.AnalysisSingle,
		Status:       types.AnalysisProcessing,
		Model:        s.analyzer.Model(),
		DocumentIDs:  types.EncodeIDs([]uuid.UUID{doc.ID}),
	})
	if err != nil {
		s.failDocument(ctx, doc.ID, repos.StageAnalysis, err)
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	var res *analysis.Result
	err = s.withBackendSlot(ctx, func(ctx context.Context) error {
		var aerr error
		res, aerr = s.analyzer.Analyze(ctx, text, analysis.DocumentContext{DocumentID: doc.ID, DocumentName: doc.OriginalFilename})
		return aerr
	})
	if err != nil {
		s.failAnalysis(ctx, row.ID, []uuid.UUID{doc.ID}, err)
		return nil, err
	}

	rows := findingRows(row.ID, doc.ID, res.Findings, nil)
	if err := s.persistResult(ctx, row, res, rows, []uuid.UUID{doc.ID}); err != nil {
		s.failAnalysis(ctx, row.ID, []uuid.UUID{doc.ID}, err)
		return nil, err
	}
	if err := s.documentRepo.MarkCompleted(dbctx.Context{Ctx: ctx}, doc.ID); err != nil {
		err = fmt.Errorf("mark completed: %w", err)
		s.failDocument(ctx, doc.ID, repos.StageAnalysis, err)
		return nil, err
	}
	s.log.Info("document analyzed", "document_id", doc.ID, "analysis_id", row.ID, "findings", len(rows), "risk_level", res.RiskLevel)
	return row, nil
}

// =====================================
// Batch
// =====================================

type extractedDocument struct {
	doc  *types.Document
	text string
}

func (s *documentProcessingService) ProcessBatch(ctx context.Context, documentIDs []uuid.UUID) (out *types.Analysis, err error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := observability.StartSpan(ctx, "documents.ProcessBatch", attribute.Int("batch.size", len(documentIDs)))
	defer func() { observability.EndSpan(span, err) }()

	docs, err := s.documentRepo.GetByIDs(dbctx.Context{Ctx: ctx}, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("batch documents: %w", pkgerrors.ErrNotFound)
	}
	defer func() {
		if err != nil {
			s.failUnfinished(ctx, documentIDs, err)
		}
	}()

	// Every extraction is attempted before the join; failures stay per document.
	survivors := make([]extractedDocument, 0, len(docs))
	for _, d := range docs {
		text, xerr := s.extractDocument(ctx, d)
		if xerr != nil {
			s.log.Warn("batch extraction failed", "document_id", d.ID, "error", xerr)
			continue
		}
		survivors = append(survivors, extractedDocument{doc: d, text: text})
	}
	if len(survivors) == 0 {
		err = fmt.Errorf("no document in the batch could be extracted")
		return nil, err
	}

	withText := make([]extractedDocument, 0, len(survivors))
	for _, sv := range survivors {
		if strings.TrimSpace(sv.text) != "" {
			withText = append(withText, sv)
		}
	}
	if len(withText) < 2 {
		out, err = s.singleFallback(ctx, survivors, withText)
		return out, err
	}
	out, err = s.analyzeCross(ctx, survivors, withText)
	return out, err
}

// singleFallback analyzes one document alone when fewer than two carry text;
// the other survivors complete without their own analysis.
func (s *documentProcessingService) singleFallback(ctx context.Context, survivors, withText []extractedDocument) (*types.Analysis, error) {
	pick := survivors[0]
	if len(withText) > 0 {
		pick = withText[0]
	}
	s.log.Info("batch falls back to single analysis", "document_id", pick.doc.ID, "survivors", len(survivors))
	row, err := s.analyzeSingle(ctx, pick.doc, pick.text)
	if err != nil {
		for _, sv := range survivors {
			if sv.doc.ID != pick.doc.ID {
				s.failDocument(ctx, sv.doc.ID, repos.StageAnalysis, err)
			}
		}
		return nil, err
	}
	for _, sv := range survivors {
		if sv.doc.ID == pick.doc.ID {
			continue
		}
		if err := s.documentRepo.MarkCompleted(dbctx.Context{Ctx: ctx}, sv.doc.ID); err != nil {
			s.failDocument(ctx, sv.doc.ID, repos.StageAnalysis, fmt.Errorf("mark completed: %w", err))
		}
	}
	return row, nil
}

func (s *documentProcessingService) analyzeCross(ctx context.Context, survivors, withText []extractedDocument) (*types.Analysis, error) {
	survivorIDs := make([]uuid.UUID, len(survivors))
	for i, sv := range survivors {
		survivorIDs[i] = sv.doc.ID
	}
	primary := survivors[0].doc.ID

	row, err := s.analysisRepo.Create(dbctx.Context{Ctx: ctx}, &types.Analysis{
		DocumentID:   primary,
		AnalysisType: types.AnalysisCrossDocument,
		Status:       types.AnalysisProcessing,
		Model:        s.analyzer.Model(),
		DocumentIDs:  types.EncodeIDs(survivorIDs),
	})
	if err != nil {
		err = fmt.Errorf("create analysis: %w", err)
		for _, id := range survivorIDs {
			s.failDocument(ctx, id, repos.StageAnalysis, err)
		}
		return nil, err
	}

	inputs := make([]analysis.DocumentText, len(withText))
	for i, sv := range withText {
		inputs[i] = analysis.DocumentText{ID: sv.doc.ID, Name: sv.doc.OriginalFilename, Text: sv.text}
	}
	var res *analysis.CrossResult
	err = s.withBackendSlot(ctx, func(ctx context.Context) error {
		var aerr error
		res, aerr = s.analyzer.AnalyzeCrossDocument(ctx, inputs)
		return aerr
	})
	if err != nil {
		s.failAnalysis(ctx, row.ID, survivorIDs, err)
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(survivors))
	for _, sv := range survivors {
		names[sv.doc.ID] = sv.doc.OriginalFilename
	}
	rows := findingRows(row.ID, primary, res.Findings, names)
	if err := s.persistResult(ctx, row, &res.Result, rows, survivorIDs); err != nil {
		s.failAnalysis(ctx, row.ID, survivorIDs, err)
		return nil, err
	}
	for _, id := range survivorIDs {
		if err := s.documentRepo.MarkCompleted(dbctx.Context{Ctx: ctx}, id); err != nil {
			s.failDocument(ctx, id, repos.StageAnalysis, fmt.Errorf("mark completed: %w", err))
		}
	}
	s.log.Info("batch analyzed", "analysis_id", row.ID, "documents", len(survivorIDs), "participants", len(res.Documents), "findings", len(rows))
	return row, nil
}

// =====================================
// Persistence helpers
// =====================================

func (s *documentProcessingService) withBackendSlot(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()
	if err := s.backendSlots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for analysis slot: %w", err)
	}
	defer s.backendSlots.Release(1)
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("analysis timed out after %s: %w", s.cfg.AnalysisTimeout, err)
	}
	return err
}

func (s *documentProcessingService) persistResult(ctx context.Context, row *types.Analysis, res *analysis.Result, findings []*types.Finding, docIDs []uuid.UUID) error {
	diag, _ := json.Marshal(res.Diagnostics)
	updates := map[string]interface{}{
		"summary":            res.Summary,
		"confidence_score":   contradiction.ClampConfidence(res.Confidence),
		"risk_level":         string(res.RiskLevel),
		"processing_time_ms": res.Duration.Milliseconds(),
		"raw_response":       rawJSON(res.RawResponse),
		"diagnostics":        datatypes.JSON(diag),
		"document_ids":       types.EncodeIDs(docIDs),
	}
	if res.Model != "" {
		updates["model"] = res.Model
	}
	observability.ReportResponseQuality(ctx, s.log, string(row.AnalysisType), observability.ResponseIssues{
		ParseFailed:      res.Diagnostics.ParseFailed,
		SchemaViolations: res.Diagnostics.SchemaViolations,
		Repairs:          res.Diagnostics.Repairs,
		Fallback:         res.Diagnostics.Fallback,
	}, map[string]any{"analysis_id": row.ID.String()})
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.findingRepo.Create(dbc, findings); err != nil {
			return fmt.Errorf("create findings: %w", err)
		}
		if err := s.analysisRepo.Complete(dbc, row.ID, updates); err != nil {
			return fmt.Errorf("complete analysis: %w", err)
		}
		m := observability.Current()
		for _, f := range findings {
			m.IncFinding(f.Type, f.Severity, f.Source)
		}
		row.Status = types.AnalysisCompleted
		row.Summary = res.Summary
		row.RiskLevel = string(res.RiskLevel)
		row.ConfidenceScore = contradiction.ClampConfidence(res.Confidence)
		row.ProcessingTimeMs = res.Duration.Milliseconds()
		return nil
	})
}

// failAnalysis records err on the analysis and every affected document.
func (s *documentProcessingService) failAnalysis(ctx context.Context, analysisID uuid.UUID, docIDs []uuid.UUID, err error) {
	bg := context.WithoutCancel(ctx)
	if ferr := s.analysisRepo.Fail(dbctx.Context{Ctx: bg}, analysisID, err.Error()); ferr != nil {
		s.log.Warn("fail analysis", "analysis_id", analysisID, "error", ferr)
	}
	for _, id := range docIDs {
		s.failDocument(ctx, id, repos.StageAnalysis, err)
	}
}

// failUnfinished fails every batch member that is still mid-pipeline after the
// batch as a whole errored. Terminal documents keep their status.
func (s *documentProcessingService) failUnfinished(ctx context.Context, ids []uuid.UUID, cause error) {
	bg := context.WithoutCancel(ctx)
	docs, err := s.documentRepo.GetByIDs(dbctx.Context{Ctx: bg}, ids)
	if err != nil {
		s.log.Warn("reload batch documents", "error", err)
		return
	}
	for _, d := range docs {
		if d.ProcessingStatus.Terminal() {
			continue
		}
		stage := repos.StageAnalysis
		if d.ProcessingStatus != types.DocumentStatusAnalyzing {
			stage = repos.StageExtraction
		}
		s.failDocument(bg, d.ID, stage, cause)
	}
}

func (s *documentProcessingService) failDocument(ctx context.Context, id uuid.UUID, stage repos.FailureStage, cause error) {
	bg := context.WithoutCancel(ctx)
	if err := s.documentRepo.MarkFailed(dbctx.Context{Ctx: bg}, id, stage, cause.Error()); err != nil {
		s.log.Warn("mark failed", "document_id", id, "stage", stage, "error", err)
		return
	}
	s.log.Warn("document failed", "document_id", id, "stage", stage, "cause", cause)
}

// rawJSON keeps valid JSON replies as-is and wraps anything else as a string.
func rawJSON(raw string) datatypes.JSON {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if json.Valid([]byte(raw)) {
		return datatypes.JSON(raw)
	}
	b, _ := json.Marshal(raw)
	return datatypes.JSON(b)
}

type crossMetadata struct {
	Documents     []contradiction.DocumentRef `json:"documents"`
	DocumentIDs   []uuid.UUID                 `json:"documentIds"`
	DocumentNames []string                    `json:"documentNames"`
}

// findingRows converts repaired findings into rows. Cross-document findings are
// attached to their first referenced document.
func findingRows(analysisID, primary uuid.UUID, findings []contradiction.Finding, batch map[uuid.UUID]string) []*types.Finding {
	out := make([]*types.Finding, 0, len(findings))
	for _, f := range findings {
		row := &types.Finding{
			AnalysisID:      analysisID,
			DocumentID:      primary,
			Type:            string(f.Type),
			Severity:        string(f.Severity),
			Title:           f.Title,
			Description:     f.Description,
			PageNumber:      f.PageNumber,
			LineNumber:      f.LineNumber,
			TextSnippet:     f.TextSnippet,
			PotentialImpact: f.PotentialImpact,
			Recommendation:  f.Recommendation,
			SuggestedFix:    f.SuggestedFix,
			FinancialImpact: f.FinancialImpact,
			PreventedLoss:   f.PreventedLoss,
			Status:          types.FindingDetected,
			Source:          f.Source,
		}
		if len(f.Documents) > 0 {
			meta := crossMetadata{Documents: f.Documents}
			for _, ref := range f.Documents {
				meta.DocumentIDs = append(meta.DocumentIDs, ref.ID)
				meta.DocumentNames = append(meta.DocumentNames, ref.Name)
			}
			if _, ok := batch[f.Documents[0].ID]; ok {
				row.DocumentID = f.Documents[0].ID
			}
			if b, err := json.Marshal(meta); err == nil {
				row.Metadata = datatypes.JSON(b)
			}
		}
		if f.Deliverable != nil {
			if b, err := json.Marshal(f.Deliverable); err == nil {
				row.Deliverable = datatypes.JSON(b)
			}
		}
		if f.Highlight != nil {
			if b, err := json.Marshal(f.Highlight); err == nil {
				row.Highlight = datatypes.JSON(b)
			}
		}
		out = append(out, row)
	}
	return out
}

// =====================================
// Jobs
// =====================================

func (s *documentProcessingService) RunJob(ctx context.Context, jobID uuid.UUID) (err error) {
	ctx = ctxutil.Default(ctx)
	dbc := dbctx.Context{Ctx: ctx}
	job, err := s.jobRepo.GetByID(dbc, jobID)
	if err != nil {
		return err
	}
	if job.Status == types.JobCompleted || job.Status == types.JobFailed {
		s.log.Debug("job already finished", "job_id", jobID, "status", job.Status)
		return nil
	}

	lease, err := s.locker.Acquire(ctx, "processing_job:"+jobID.String(), s.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.log.Info("job is held by another runner", "job_id", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock job: %w", err)
	}
	defer func() {
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.log.Warn("release job lock", "job_id", jobID, "error", rerr)
		}
	}()

	// Workers claim before calling RunJob; direct callers claim here.
	if job.Status == types.JobQueued {
		claimed, err := s.jobRepo.MarkProcessing(dbc, jobID)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		if !claimed {
			return nil
		}
	}

	ctx, span := observability.StartSpan(ctx, "documents.RunJob",
		attribute.String("job.id", jobID.String()),
		attribute.String("job.type", string(job.JobType)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	stopHeartbeat := s.startHeartbeat(ctx, jobID, lease)
	analysisID, runErr := s.dispatch(ctx, job)
	stopHeartbeat()
	status := types.JobCompleted
	finishCtx := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if runErr != nil {
		status = types.JobFailed
		err = s.jobRepo.Fail(finishCtx, jobID, runErr.Error())
	} else {
		err = s.jobRepo.Complete(finishCtx, jobID, analysisID)
	}
	observability.Current().ObserveJob(string(job.JobType), string(status), time.Since(start))
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	s.log.Info("job finished", "job_id", jobID, "job_type", job.JobType, "status", status, "duration_ms", time.Since(start).Milliseconds())
	return runErr
}

// startHeartbeat refreshes the job row and extends the lock lease until the
// returned stop func is called. Stop waits for the last beat to finish.
func (s *documentProcessingService) startHeartbeat(ctx context.Context, jobID uuid.UUID, lease lock.Lease) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.jobRepo.Heartbeat(dbctx.Context{Ctx: ctx}, jobID); err != nil && ctx.Err() == nil {
					s.log.Warn("job heartbeat failed", "job_id", jobID, "error", err)
				}
				if err := lease.Extend(ctx, s.cfg.LockTTL); err != nil && ctx.Err() == nil {
					s.log.Warn("job lock extend failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// dispatch runs the job body. A single job over several documents succeeds
// when at least one document completes.
func (s *documentProcessingService) dispatch(ctx context.Context, job *types.ProcessingJob) (*uuid.UUID, error) {
	ids, err := job.DocumentIDList()
	if err != nil {
		return nil, fmt.Errorf("decode job documents: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: job has no documents", pkgerrors.ErrInvalidArgument)
	}
	// We hold the job lock, so anything still mid-pipeline was left by a run that died.
	for _, id := range ids {
		if _, err := s.documentRepo.ResetInterrupted(dbctx.Context{Ctx: ctx}, id); err != nil {
			s.log.Warn("reset interrupted document", "document_id", id, "error", err)
		}
	}

	switch job.JobType {
	case types.AnalysisCrossDocument:
		row, err := s.ProcessBatch(ctx, ids)
		if err != nil {
			return nil, err
		}
		return &row.ID, nil
	case types.AnalysisSingle:
		var (
			first   *uuid.UUID
			lastErr error
		)
		for _, id := range ids {
			row, err := s.ProcessDocument(ctx, id)
			if err != nil {
				lastErr = err
				continue
			}
			if first == nil {
				first = &row.ID
			}
		}
		if first == nil {
			return nil, lastErr
		}
		return first, nil
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", pkgerrors.ErrInvalidArgument, job.JobType)
	}
}

// Reanalyze restarts a finished document and queues a fresh single job for it.
func (s *documentProcessingService) Reanalyze(ctx context.Context, userID, documentID uuid.UUID) (*types.ProcessingJob, error) {
	ctx = ctxutil.Default(ctx)
	var job *types.ProcessingJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		doc, err := s.documentRepo.GetByUserAndID(dbc, userID, documentID)
		if err != nil {
			return err
		}
		if !doc.ProcessingStatus.Terminal() {
			return fmt.Errorf("%w: document is %s", pkgerrors.ErrConflict, doc.ProcessingStatus)
		}
		if err := s.documentRepo.ResetForReanalysis(dbc, doc.ID); err != nil {
			return err
		}
		job, err = s.jobRepo.Create(dbc, &types.ProcessingJob{
			UserID:      userID,
			DocumentIDs: types.EncodeIDs([]uuid.UUID{doc.ID}),
			JobType:     types.AnalysisSingle,
			Status:      types.JobQueued,
			Priority:    1,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reanalysis queued", "document_id", documentID, "job_id", job.ID)
	return job, nil
}
