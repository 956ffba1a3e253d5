package runtime

import (
	"context"
	"fmt"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

/*
Context is the execution handle for one claimed processing job.
It carries:
  - Ctx: worker context (cancellation on shutdown), tagged with the job id as trace data
  - Job: the claimed processing_job row
  - Log: a logger scoped to the job

Handlers report the outcome through their return value; Fail exists for the
worker's own failures (missing handler, panic).
*/
type Context struct {
	Ctx  context.Context
	Job  *types.ProcessingJob
	Log  *logger.Logger
	repo repos.ProcessingJobRepo
}

func NewContext(ctx context.Context, job *types.ProcessingJob, repo repos.ProcessingJobRepo, log *logger.Logger) *Context {
	ctx = ctxutil.Default(ctx)
	if job != nil {
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{RequestID: "job:" + job.ID.String()})
	}
	c := &Context{Ctx: ctx, Job: job, repo: repo, Log: log}
	if job != nil && log != nil {
		c.Log = log.With("job_id", job.ID, "job_type", job.JobType)
	}
	return c
}

/*
Fail marks the job failed with stage-prefixed context. A job that is no longer
processing (the handler already finished it) is left untouched.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.repo == nil || err == nil {
		return
	}
	msg := fmt.Sprintf("%s: %v", stage, err)
	if ferr := c.repo.Fail(dbctx.Context{Ctx: context.WithoutCancel(c.Ctx)}, c.Job.ID, msg); ferr != nil {
		if c.Log != nil {
			c.Log.Debug("job fail skipped", "stage", stage, "error", ferr)
		}
		return
	}
	if c.Log != nil {
		c.Log.Warn("job failed", "stage", stage, "error", err)
	}
}
