package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/docsentinel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
)

func TestClaimNextOrdersByPriorityThenAge(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewProcessingJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}
	userID := uuid.New()

	low := testutil.SeedJob(t, ctx, db, userID, []uuid.UUID{uuid.New()}, types.AnalysisSingle, 0)
	high := testutil.SeedJob(t, ctx, db, userID, []uuid.UUID{uuid.New()}, types.AnalysisSingle, 5)
	// Force a deterministic age order for equal priority.
	db.Model(&types.ProcessingJob{}).Where("id = ?", low.ID).Update("created_at", time.Now().Add(-time.Hour))
	lowLater := testutil.SeedJob(t, ctx, db, userID, []uuid.UUID{uuid.New()}, types.AnalysisSingle, 0)

	want := []uuid.UUID{high.ID, low.ID, lowLater.ID}
	for i, id := range want {
		job, err := repo.ClaimNext(dbc)
		if err != nil {
			t.Fatalf("ClaimNext #%d: %v", i, err)
		}
		if job == nil || job.ID != id {
			t.Fatalf("claim #%d got %v want %s", i, job, id)
		}
		if job.Status != types.JobProcessing || job.Attempts != 1 || job.StartedAt == nil {
			t.Fatalf("claimed job state: %+v", job)
		}
	}
	job, err := repo.ClaimNext(dbc)
	if err != nil || job != nil {
		t.Fatalf("empty queue: %v %v", job, err)
	}
}

func TestJobCompleteFailAndRequeue(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewProcessingJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}
	userID := uuid.New()

	job := testutil.SeedJob(t, ctx, db, userID, []uuid.UUID{uuid.New()}, types.AnalysisSingle, 0)
	if err := repo.Complete(dbc, job.ID, nil); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("complete queued job err=%v", err)
	}
	won, err := repo.MarkProcessing(dbc, job.ID)
	if err != nil || !won {
		t.Fatalf("MarkProcessing: %v %v", won, err)
	}
	if won, _ := repo.MarkProcessing(dbc, job.ID); won {
		t.Fatalf("second MarkProcessing should lose")
	}
	analysisID := uuid.New()
	if err := repo.Complete(dbc, job.ID, &analysisID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ := repo.GetByID(dbc, job.ID)
	if got.Status != types.JobCompleted || got.AnalysisID == nil || *got.AnalysisID != analysisID || got.FinishedAt == nil {
		t.Fatalf("completed job: %+v", got)
	}

	failing := testutil.SeedJob(t, ctx, db, userID, nil, types.AnalysisCrossDocument, 0)
	_, _ = repo.MarkProcessing(dbc, failing.ID)
	if err := repo.Fail(dbc, failing.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ = repo.GetByID(dbc, failing.ID)
	if got.Status != types.JobFailed || got.Error != "boom" {
		t.Fatalf("failed job: %+v", got)
	}

	stale := testutil.SeedJob(t, ctx, db, userID, nil, types.AnalysisSingle, 0)
	_, _ = repo.MarkProcessing(dbc, stale.ID)
	hourAgo := time.Now().UTC().Add(-time.Hour)
	db.Model(&types.ProcessingJob{}).Where("id = ?", stale.ID).Updates(map[string]interface{}{"started_at": hourAgo, "heartbeat_at": hourAgo})
	n, err := repo.RequeueStale(dbc, 10*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("RequeueStale: %d %v", n, err)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.JobQueued] != 1 || counts[types.JobCompleted] != 1 || counts[types.JobFailed] != 1 || counts[types.JobProcessing] != 0 {
		t.Fatalf("counts=%v", counts)
	}
}

func TestGetByUserAndIDScopesJobs(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewProcessingJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	owner := uuid.New()
	job := testutil.SeedJob(t, ctx, db, owner, []uuid.UUID{uuid.New(), uuid.New()}, types.AnalysisCrossDocument, 0)
	got, err := repo.GetByUserAndID(dbc, owner, job.ID)
	if err != nil {
		t.Fatalf("GetByUserAndID: %v", err)
	}
	ids, err := got.DocumentIDList()
	if err != nil || len(ids) != 2 {
		t.Fatalf("DocumentIDList: %v %v", ids, err)
	}
	if _, err := repo.GetByUserAndID(dbc, uuid.New(), job.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("other user err=%v", err)
	}
}

func TestRequeueStaleHonoursHeartbeat(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewProcessingJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}
	userID := uuid.New()
	hourAgo := time.Now().UTC().Add(-time.Hour)

	live := testutil.SeedJob(t, ctx, db, userID, nil, types.AnalysisCrossDocument, 0)
	if won, err := repo.MarkProcessing(dbc, live.ID); err != nil || !won {
		t.Fatalf("MarkProcessing: %v %v", won, err)
	}
	db.Model(&types.ProcessingJob{}).Where("id = ?", live.ID).Updates(map[string]interface{}{"started_at": hourAgo, "heartbeat_at": hourAgo})
	if err := repo.Heartbeat(dbc, live.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	silent := testutil.SeedJob(t, ctx, db, userID, nil, types.AnalysisSingle, 0)
	_, _ = repo.MarkProcessing(dbc, silent.ID)
	db.Model(&types.ProcessingJob{}).Where("id = ?", silent.ID).Updates(map[string]interface{}{"started_at": hourAgo, "heartbeat_at": hourAgo})

	n, err := repo.RequeueStale(dbc, 10*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("RequeueStale: %d %v", n, err)
	}
	if got, _ := repo.GetByID(dbc, live.ID); got.Status != types.JobProcessing {
		t.Fatalf("live job requeued: %s", got.Status)
	}
	if got, _ := repo.GetByID(dbc, silent.ID); got.Status != types.JobQueued {
		t.Fatalf("silent job status=%s", got.Status)
	}

	queued := testutil.SeedJob(t, ctx, db, userID, nil, types.AnalysisSingle, 0)
	if err := repo.Heartbeat(dbc, queued.ID); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("heartbeat on queued job err=%v", err)
	}
}
