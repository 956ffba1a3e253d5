package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/docsentinel-backend/internal/http/response"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type JobHandler struct {
	documents services.DocumentService
}

func NewJobHandler(documents services.DocumentService) *JobHandler {
	return &JobHandler{documents: documents}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.documents.GetJob(c.Request.Context(), userID, jobID)
	if err != nil {
		response.RespondServiceError(c, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
