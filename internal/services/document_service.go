package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
)

// FindingUpdate carries the user-editable finding fields. Nil means unchanged.
type FindingUpdate struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Severity       *string `json:"severity"`
	Recommendation *string `json:"recommendation"`
	SuggestedFix   *string `json:"suggestedFix"`
}

type DocumentService interface {
	ListDocuments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Document, error)
	GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error)
	DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error
	ListAnalyses(ctx context.Context, userID, documentID uuid.UUID) ([]*types.Analysis, error)
	ListFindingsByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]*types.Finding, error)
	ListFindingsByAnalysis(ctx context.Context, userID, analysisID uuid.UUID) ([]*types.Finding, error)
	ResolveFinding(ctx context.Context, userID, findingID uuid.UUID, resolvedBy string, notes *string) (*types.Finding, error)
	UpdateFinding(ctx context.Context, userID, findingID uuid.UUID, in FindingUpdate) (*types.Finding, error)
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*types.ProcessingJob, error)
}

type documentService struct {
	db           *gorm.DB
	log          *logger.Logger
	documentRepo repos.DocumentRepo
	analysisRepo repos.AnalysisRepo
	findingRepo  repos.FindingRepo
	jobRepo      repos.ProcessingJobRepo
	store        filestore.Store
	now          func() time.Time
}

func NewDocumentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	documentRepo repos.DocumentRepo,
	analysisRepo repos.AnalysisRepo,
	findingRepo repos.FindingRepo,
	jobRepo repos.ProcessingJobRepo,
	store filestore.Store,
) DocumentService {
	return &documentService{
		db:           db,
		log:          baseLog.With("service", "DocumentService"),
		documentRepo: documentRepo,
		analysisRepo: analysisRepo,
		findingRepo:  findingRepo,
		jobRepo:      jobRepo,
		store:        store,
		now:          time.Now,
	}
}

func (ds *documentService) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.Default(ctx)}
}

func (ds *documentService) ListDocuments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	return ds.documentRepo.ListByUser(ds.dbc(ctx), userID, limit, offset)
}

func (ds *documentService) GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error) {
	return ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, documentID)
}

// DeleteDocument removes the row and its backing file. Documents still moving
// through the pipeline cannot be deleted.
func (ds *documentService) DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	doc, err := ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, documentID)
	if err != nil {
		return err
	}
	if doc.ProcessingStatus == types.DocumentStatusExtracting || doc.ProcessingStatus == types.DocumentStatusAnalyzing {
		return fmt.Errorf("%w: document is %s", pkgerrors.ErrConflict, doc.ProcessingStatus)
	}
	if err := ds.documentRepo.SoftDelete(ds.dbc(ctx), doc.ID); err != nil {
		return err
	}
	if doc.StoragePath != "" {
		if err := ds.store.Delete(ctxutil.Default(ctx), doc.StoragePath); err != nil {
			ds.log.Warn("delete backing file failed", "document_id", doc.ID, "storage_path", doc.StoragePath, "error", err)
		}
	}
	ds.log.Info("document deleted", "document_id", doc.ID, "user_id", userID)
	return nil
}

func (ds *documentService) ListAnalyses(ctx context.Context, userID, documentID uuid.UUID) ([]*types.Analysis, error) {
	if _, err := ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, documentID); err != nil {
		return nil, err
	}
	return ds.analysisRepo.ListByDocument(ds.dbc(ctx), documentID)
}

func (ds *documentService) ListFindingsByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]*types.Finding, error) {
	if _, err := ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, documentID); err != nil {
		return nil, err
	}
	return ds.findingRepo.ListByDocument(ds.dbc(ctx), documentID)
}

func (ds *documentService) ListFindingsByAnalysis(ctx context.Context, userID, analysisID uuid.UUID) ([]*types.Finding, error) {
	a, err := ds.analysisRepo.GetByID(ds.dbc(ctx), analysisID)
	if err != nil {
		return nil, err
	}
	if _, err := ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, a.DocumentID); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, pkgerrors.ErrNotFound)
	}
	return ds.findingRepo.ListByAnalysis(ds.dbc(ctx), analysisID)
}

// ownedFinding hides findings on other users' documents behind ErrNotFound.
func (ds *documentService) ownedFinding(ctx context.Context, userID, findingID uuid.UUID) (*types.Finding, error) {
	f, err := ds.findingRepo.GetByID(ds.dbc(ctx), findingID)
	if err != nil {
		return nil, err
	}
	if _, err := ds.documentRepo.GetByUserAndID(ds.dbc(ctx), userID, f.DocumentID); err != nil {
		return nil, fmt.Errorf("finding %s: %w", findingID, pkgerrors.ErrNotFound)
	}
	return f, nil
}

func (ds *documentService) ResolveFinding(ctx context.Context, userID, findingID uuid.UUID, resolvedBy string, notes *string) (*types.Finding, error) {
	if _, err := ds.ownedFinding(ctx, userID, findingID); err != nil {
		return nil, err
	}
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		resolvedBy = userID.String()
	}
	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		if trimmed == "" {
			notes = nil
		} else {
			notes = &trimmed
		}
	}
	if err := ds.findingRepo.Resolve(ds.dbc(ctx), findingID, resolvedBy, notes, ds.now().UTC()); err != nil {
		return nil, err
	}
	ds.log.Info("finding resolved", "finding_id", findingID, "user_id", userID)
	return ds.findingRepo.GetByID(ds.dbc(ctx), findingID)
}

func (ds *documentService) UpdateFinding(ctx context.Context, userID, findingID uuid.UUID, in FindingUpdate) (*types.Finding, error) {
	if _, err := ds.ownedFinding(ctx, userID, findingID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", pkgerrors.ErrInvalidArgument)
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Severity != nil {
		sev, _ := contradiction.ParseSeverity(*in.Severity)
		updates["severity"] = string(sev)
	}
	if in.Recommendation != nil {
		updates["recommendation"] = strings.TrimSpace(*in.Recommendation)
	}
	if in.SuggestedFix != nil {
		updates["suggested_fix"] = strings.TrimSpace(*in.SuggestedFix)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", pkgerrors.ErrInvalidArgument)
	}
	if err := ds.findingRepo.UpdateFields(ds.dbc(ctx), findingID, updates); err != nil {
		return nil, err
	}
	return ds.findingRepo.GetByID(ds.dbc(ctx), findingID)
}

func (ds *documentService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*types.ProcessingJob, error) {
	return ds.jobRepo.GetByUserAndID(ds.dbc(ctx), userID, jobID)
}
