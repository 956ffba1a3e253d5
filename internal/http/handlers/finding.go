package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docsentinel-backend/internal/http/response"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type FindingHandler struct {
	documents services.DocumentService
}

func NewFindingHandler(documents services.DocumentService) *FindingHandler {
	return &FindingHandler{documents: documents}
}

type resolveFindingRequest struct {
	ResolvedBy string  `json:"resolved_by"`
	Notes      *string `json:"notes"`
}

type updateFindingRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Severity       *string `json:"severity"`
	Recommendation *string `json:"recommendation"`
	SuggestedFix   *string `json:"suggested_fix"`
}

// GET /api/analyses/:id/findings
func (h *FindingHandler) ListByAnalysis(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	analysisID, ok := pathID(c, "invalid_analysis_id")
	if !ok {
		return
	}
	findings, err := h.documents.ListFindingsByAnalysis(c.Request.Context(), userID, analysisID)
	if err != nil {
		response.RespondServiceError(c, "list_findings_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"findings": findings})
}

// POST /api/findings/:id/resolve
func (h *FindingHandler) Resolve(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	findingID, ok := pathID(c, "invalid_finding_id")
	if !ok {
		return
	}
	var req resolveFindingRequest
	// The body is optional.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	finding, err := h.documents.ResolveFinding(c.Request.Context(), userID, findingID, req.ResolvedBy, req.Notes)
	if err != nil {
		response.RespondServiceError(c, "resolve_finding_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"finding": finding})
}

// PATCH /api/findings/:id
func (h *FindingHandler) Update(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	findingID, ok := pathID(c, "invalid_finding_id")
	if !ok {
		return
	}
	var req updateFindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	finding, err := h.documents.UpdateFinding(c.Request.Context(), userID, findingID, services.FindingUpdate{
		Title:          req.Title,
		Description:    req.Description,
		Severity:       req.Severity,
		Recommendation: req.Recommendation,
		SuggestedFix:   req.SuggestedFix,
	})
	if err != nil {
		response.RespondServiceError(c, "update_finding_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"finding": finding})
}
