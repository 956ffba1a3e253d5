package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
)

// JobRunner is the part of the processing service a handler drives.
type JobRunner interface {
	RunJob(ctx context.Context, jobID uuid.UUID) error
}

// ProcessingHandler runs single and cross_document jobs through the document
// processing service, which owns the job's terminal status.
type ProcessingHandler struct {
	jobType types.AnalysisType
	runner  JobRunner
}

func NewProcessingHandler(jobType types.AnalysisType, runner JobRunner) *ProcessingHandler {
	return &ProcessingHandler{jobType: jobType, runner: runner}
}

func (h *ProcessingHandler) Type() string { return string(h.jobType) }

func (h *ProcessingHandler) Run(c *Context) error {
	if c == nil || c.Job == nil {
		return fmt.Errorf("missing job")
	}
	return h.runner.RunJob(c.Ctx, c.Job.ID)
}

// RegisterProcessing registers handlers for every analysis job type.
func RegisterProcessing(r *Registry, runner JobRunner) error {
	for _, t := range []types.AnalysisType{types.AnalysisSingle, types.AnalysisCrossDocument} {
		if err := r.Register(NewProcessingHandler(t, runner)); err != nil {
			return err
		}
	}
	return nil
}
