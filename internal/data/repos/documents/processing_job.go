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

// Attempts to win a claim before reporting an empty queue.
const claimRetries = 3

type ProcessingJobRepo interface {
	Create(dbc dbctx.Context, job *types.ProcessingJob) (*types.ProcessingJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProcessingJob, error)
	GetByUserAndID(dbc dbctx.Context, userID, id uuid.UUID) (*types.ProcessingJob, error)
	ClaimNext(dbc dbctx.Context) (*types.ProcessingJob, error)
	MarkProcessing(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	Complete(dbc dbctx.Context, id uuid.UUID, analysisID *uuid.UUID) error
	Fail(dbc dbctx.Context, id uuid.UUID, msg string) error
	RequeueStale(dbc dbctx.Context, olderThan time.Duration) (int64, error)
	CountByStatus(dbc dbctx.Context) (map[types.JobStatus]int64, error)
}

type processingJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcessingJobRepo(db *gorm.DB, baseLog *logger.Logger) ProcessingJobRepo {
	return &processingJobRepo{db: db, log: baseLog.With("repo", "ProcessingJobRepo")}
}

func (r *processingJobRepo) Create(dbc dbctx.Context, job *types.ProcessingJob) (*types.ProcessingJob, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", pkgerrors.ErrInvalidArgument)
	}
	if len(job.DocumentIDs) == 0 {
		job.DocumentIDs = types.EncodeIDs(nil)
	}
	if err := dbc.Pick(r.db).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *processingJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProcessingJob, error) {
	var job types.ProcessingJob
	err := dbc.Pick(r.db).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *processingJobRepo) GetByUserAndID(dbc dbctx.Context, userID, id uuid.UUID) (*types.ProcessingJob, error) {
	var job types.ProcessingJob
	err := dbc.Pick(r.db).Where("id = ? AND user_id = ?", id, userID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext picks the highest-priority, oldest queued job and flips it to
// processing with a conditional update, so two workers never claim the same row.
// Returns nil when the queue is empty.
func (r *processingJobRepo) ClaimNext(dbc dbctx.Context) (*types.ProcessingJob, error) {
	db := dbc.Pick(r.db)
	for attempt := 0; attempt < claimRetries; attempt++ {
		var job types.ProcessingJob
		err := db.Where("status = ?", types.JobQueued).
			Order("priority DESC").
			Order("created_at ASC").
			Limit(1).
			Find(&job).Error
		if err != nil {
			return nil, err
		}
		if job.ID == uuid.Nil {
			return nil, nil
		}
		won, err := r.MarkProcessing(dbc, job.ID)
		if err != nil {
			return nil, err
		}
		if won {
			return r.GetByID(dbc, job.ID)
		}
	}
	return nil, nil
}

// MarkProcessing flips a queued job to processing; false means someone else got it.
func (r *processingJobRepo) MarkProcessing(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := dbc.Pick(r.db).Model(&types.ProcessingJob{}).
		Where("id = ? AND status = ?", id, types.JobQueued).
		Updates(map[string]interface{}{
			"status":       types.JobProcessing,
			"attempts":     gorm.Expr("attempts + 1"),
			"started_at":   now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Heartbeat marks a processing job as still owned by a live runner.
func (r *processingJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := dbc.Pick(r.db).Model(&types.ProcessingJob{}).
		Where("id = ? AND status = ?", id, types.JobProcessing).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s not processing: %w", id, pkgerrors.ErrConflict)
	}
	return nil
}

func (r *processingJobRepo) Complete(dbc dbctx.Context, id uuid.UUID, analysisID *uuid.UUID) error {
	now := time.Now().UTC()
	return r.finish(dbc, id, map[string]interface{}{
		"status":      types.JobCompleted,
		"analysis_id": analysisID,
		"error":       "",
		"finished_at": now,
		"updated_at":  now,
	})
}

func (r *processingJobRepo) Fail(dbc dbctx.Context, id uuid.UUID, msg string) error {
	now := time.Now().UTC()
	return r.finish(dbc, id, map[string]interface{}{
		"status":      types.JobFailed,
		"error":       msg,
		"finished_at": now,
		"updated_at":  now,
	})
}

func (r *processingJobRepo) finish(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := dbc.Pick(r.db).Model(&types.ProcessingJob{}).
		Where("id = ? AND status = ?", id, types.JobProcessing).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s not processing: %w", id, pkgerrors.ErrConflict)
	}
	return nil
}

// RequeueStale returns processing jobs whose runner stopped heartbeating back
// to the queue. Rows without a heartbeat fall back to started_at.
func (r *processingJobRepo) RequeueStale(dbc dbctx.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := dbc.Pick(r.db).Model(&types.ProcessingJob{}).
		Where("status = ? AND COALESCE(heartbeat_at, started_at) IS NOT NULL AND COALESCE(heartbeat_at, started_at) < ?", types.JobProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     types.JobQueued,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("requeued stale jobs", "count", res.RowsAffected, "cutoff", cutoff)
	}
	return res.RowsAffected, nil
}

func (r *processingJobRepo) CountByStatus(dbc dbctx.Context) (map[types.JobStatus]int64, error) {
	var rows []struct {
		Status types.JobStatus
		N      int64
	}
	err := dbc.Pick(r.db).Model(&types.ProcessingJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[types.JobStatus]int64, len(types.JobStatuses))
	for _, s := range types.JobStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
