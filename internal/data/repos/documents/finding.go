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

type FindingRepo interface {
	Create(dbc dbctx.Context, findings []*types.Finding) ([]*types.Finding, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Finding, error)
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.Finding, error)
	ListByAnalysis(dbc dbctx.Context, analysisID uuid.UUID) ([]*types.Finding, error)
	CountByDocument(dbc dbctx.Context, documentID uuid.UUID) (int64, error)
	Resolve(dbc dbctx.Context, id uuid.UUID, resolvedBy string, notes *string, at time.Time) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type findingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFindingRepo(db *gorm.DB, baseLog *logger.Logger) FindingRepo {
	return &findingRepo{db: db, log: baseLog.With("repo", "FindingRepo")}
}

func (r *findingRepo) Create(dbc dbctx.Context, findings []*types.Finding) ([]*types.Finding, error) {
	if len(findings) == 0 {
		return []*types.Finding{}, nil
	}
	if err := dbc.Pick(r.db).Create(&findings).Error; err != nil {
		return nil, err
	}
	return findings, nil
}

func (r *findingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Finding, error) {
	var f types.Finding
	err := dbc.Pick(r.db).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("finding %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *findingRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.Finding, error) {
	var out []*types.Finding
	if err := dbc.Pick(r.db).Where("document_id = ?", documentID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *findingRepo) ListByAnalysis(dbc dbctx.Context, analysisID uuid.UUID) ([]*types.Finding, error) {
	var out []*types.Finding
	if err := dbc.Pick(r.db).Where("analysis_id = ?", analysisID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *findingRepo) CountByDocument(dbc dbctx.Context, documentID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.Finding{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

// Resolve is allowed once; resolving a resolved finding is a conflict.
func (r *findingRepo) Resolve(dbc dbctx.Context, id uuid.UUID, resolvedBy string, notes *string, at time.Time) error {
	res := dbc.Pick(r.db).Model(&types.Finding{}).
		Where("id = ? AND status = ?", id, types.FindingDetected).
		Updates(map[string]interface{}{
			"status":           types.FindingResolved,
			"resolved_by":      resolvedBy,
			"resolution_notes": notes,
			"resolved_at":      at,
			"updated_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetByID(dbc, id); err != nil {
		return err
	}
	return fmt.Errorf("finding %s already resolved: %w", id, pkgerrors.ErrConflict)
}

func (r *findingRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["updated_at"] = time.Now().UTC()
	res := dbc.Pick(r.db).Model(&types.Finding{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finding %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}
