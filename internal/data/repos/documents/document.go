package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/domain/documents"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// ErrInvalidTransition is returned when a document is not in a legal predecessor
// state for the requested status.
var ErrInvalidTransition = fmt.Errorf("%w: invalid document status transition", pkgerrors.ErrConflict)

// FailureStage selects which error column a failure is recorded in.
type FailureStage string

const (
	StageExtraction FailureStage = "extraction"
	StageAnalysis   FailureStage = "analysis"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, docs []*types.Document) ([]*types.Document, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Document, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Document, error)
	GetByUserAndID(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Document, error)
	Transition(dbc dbctx.Context, id uuid.UUID, to types.ProcessingStatus, updates map[string]interface{}) error

	MarkExtracting(dbc dbctx.Context, id uuid.UUID) error
	MarkExtracted(dbc dbctx.Context, id uuid.UUID, text string, method string) error
	MarkCompleted(dbc dbctx.Context, id uuid.UUID) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, stage FailureStage, msg string) error
	ResetForReanalysis(dbc dbctx.Context, id uuid.UUID) error
	ResetInterrupted(dbc dbctx.Context, id uuid.UUID) (bool, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, docs []*types.Document) ([]*types.Document, error) {
	if len(docs) == 0 {
		return []*types.Document{}, nil
	}
	if err := dbc.Pick(r.db).Create(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Document, error) {
	var doc types.Document
	err := dbc.Pick(r.db).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByIDs preserves the order of ids and skips missing rows.
func (r *documentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Document, error) {
	if len(ids) == 0 {
		return []*types.Document{}, nil
	}
	var rows []*types.Document
	if err := dbc.Pick(r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Document, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}
	out := make([]*types.Document, 0, len(rows))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *documentRepo) GetByUserAndID(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error) {
	var doc types.Document
	err := dbc.Pick(r.db).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Document
	err := dbc.Pick(r.db).
		Omit("extracted_text").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a document to `to` only from one of its legal predecessors.
// The guard lives in the WHERE clause so concurrent writers cannot regress status.
func (r *documentRepo) Transition(dbc dbctx.Context, id uuid.UUID, to types.ProcessingStatus, updates map[string]interface{}) error {
	from := documents.Transitions[to]
	if len(from) == 0 {
		return fmt.Errorf("%w: no predecessors for %q", ErrInvalidTransition, to)
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["processing_status"] = to
	fields["updated_at"] = time.Now().UTC()

	res := dbc.Pick(r.db).Model(&types.Document{}).
		Where("id = ? AND processing_status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	cur, err := r.GetByID(dbc, id)
	if err != nil {
		return err
	}
	r.log.Warn("rejected document transition", "document_id", id, "from", cur.ProcessingStatus, "to", to)
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.ProcessingStatus, to)
}

func (r *documentRepo) MarkExtracting(dbc dbctx.Context, id uuid.UUID) error {
	return r.Transition(dbc, id, types.DocumentStatusExtracting, map[string]interface{}{
		"text_extraction_status": types.ExtractionProcessing,
		"extracted_text":         nil,
		"extraction_error":       nil,
		"processing_error":       nil,
	})
}

func (r *documentRepo) MarkExtracted(dbc dbctx.Context, id uuid.UUID, text string, method string) error {
	return r.Transition(dbc, id, types.DocumentStatusAnalyzing, map[string]interface{}{
		"text_extraction_status": types.ExtractionCompleted,
		"extracted_text":         text,
		"extraction_method":      method,
	})
}

func (r *documentRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID) error {
	return r.Transition(dbc, id, types.DocumentStatusCompleted, nil)
}

// MarkFailed records msg in extraction_error for extraction failures (clearing any
// text) and in processing_error otherwise.
func (r *documentRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, stage FailureStage, msg string) error {
	updates := map[string]interface{}{}
	switch stage {
	case StageExtraction:
		updates["text_extraction_status"] = types.ExtractionFailed
		updates["extracted_text"] = nil
		updates["extraction_error"] = msg
	default:
		updates["processing_error"] = msg
	}
	return r.Transition(dbc, id, types.DocumentStatusFailed, updates)
}

// ResetForReanalysis returns a terminal document to uploaded with extraction cleared.
func (r *documentRepo) ResetForReanalysis(dbc dbctx.Context, id uuid.UUID) error {
	return r.Transition(dbc, id, types.DocumentStatusUploaded, map[string]interface{}{
		"text_extraction_status": types.ExtractionPending,
		"extracted_text":         nil,
		"extraction_method":      "",
		"extraction_error":       nil,
		"processing_error":       nil,
	})
}

// ResetInterrupted returns a document left in extracting or analyzing by a run
// that died back to uploaded. False means the document was not in flight.
func (r *documentRepo) ResetInterrupted(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.Pick(r.db).Model(&types.Document{}).
		Where("id = ? AND processing_status IN ?", id, []types.ProcessingStatus{types.DocumentStatusExtracting, types.DocumentStatusAnalyzing}).
		Updates(map[string]interface{}{
			"processing_status":      types.DocumentStatusUploaded,
			"text_extraction_status": types.ExtractionPending,
			"extracted_text":         nil,
			"extraction_method":      "",
			"extraction_error":       nil,
			"processing_error":       nil,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("reset interrupted document", "document_id", id)
	}
	return res.RowsAffected > 0, nil
}

func (r *documentRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.Pick(r.db).Where("id = ?", id).Delete(&types.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}
