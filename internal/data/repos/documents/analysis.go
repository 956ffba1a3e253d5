package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type AnalysisRepo interface {
	Create(dbc dbctx.Context, a *types.Analysis) (*types.Analysis, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Analysis, error)
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.Analysis, error)
	Complete(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Fail(dbc dbctx.Context, id uuid.UUID, msg string) error
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) Create(dbc dbctx.Context, a *types.Analysis) (*types.Analysis, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil analysis", pkgerrors.ErrInvalidArgument)
	}
	if err := dbc.Pick(r.db).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *analysisRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Analysis, error) {
	var a types.Analysis
	err := dbc.Pick(r.db).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("analysis %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByDocument returns analyses whose primary document is documentID plus
// cross-document analyses that produced a finding on it, newest first.
func (r *analysisRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.Analysis, error) {
	db := dbc.Pick(r.db)
	sub := db.Session(&gorm.Session{NewDB: true}).Model(&types.Finding{}).Select("analysis_id").Where("document_id = ?", documentID)
	var out []*types.Analysis
	err := db.
		Where("document_id = ? OR id IN (?)", documentID, sub).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete only touches analyses still in processing.
func (r *analysisRepo) Complete(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	now := time.Now().UTC()
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = types.AnalysisCompleted
	fields["completed_at"] = now
	fields["updated_at"] = now
	return r.guardedUpdate(dbc, id, fields)
}

func (r *analysisRepo) Fail(dbc dbctx.Context, id uuid.UUID, msg string) error {
	return r.guardedUpdate(dbc, id, map[string]interface{}{
		"status":     types.AnalysisFailed,
		"error":      msg,
		"updated_at": time.Now().UTC(),
	})
}

func (r *analysisRepo) guardedUpdate(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := dbc.Pick(r.db).Model(&types.Analysis{}).
		Where("id = ? AND status = ?", id, types.AnalysisProcessing).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("analysis %s not in processing: %w", id, pkgerrors.ErrConflict)
	}
	return nil
}
