package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docsentinel-backend/internal/http/response"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

const (
	maxMultipartMemory = 32 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type DocumentHandler struct {
	log        *logger.Logger
	processing services.DocumentProcessingService
	documents  services.DocumentService
	exporter   services.FindingsExporter
}

func NewDocumentHandler(
	log *logger.Logger,
	processing services.DocumentProcessingService,
	documents services.DocumentService,
	exporter services.FindingsExporter,
) *DocumentHandler {
	return &DocumentHandler{
		log:        log.With("handler", "DocumentHandler"),
		processing: processing,
		documents:  documents,
		exporter:   exporter,
	}
}

// POST /api/documents/upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	form := c.Request.MultipartForm
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_files", nil)
		return
	}
	mode := ""
	if v := form.Value["mode"]; len(v) > 0 {
		mode = strings.TrimSpace(v[0])
	}

	files := make([]services.UploadedFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		fh := fh
		files = append(files, services.UploadedFile{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			SizeBytes:    fh.Size,
			Open:         func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	res, err := h.processing.Ingest(c.Request.Context(), userID, files, mode)
	if err != nil {
		response.RespondServiceError(c, "upload_failed", err)
		return
	}
	h.log.Info("documents uploaded", "user_id", userID, "job_id", res.Job.ID, "count", len(res.Documents))
	response.RespondAccepted(c, gin.H{"job": res.Job, "documents": res.Documents})
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50, 200)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	offset, err := queryInt(c, "offset", 0, 0)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_offset", err)
		return
	}
	docs, err := h.documents.ListDocuments(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.RespondServiceError(c, "list_documents_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	doc, err := h.documents.GetDocument(c.Request.Context(), userID, docID)
	if err != nil {
		response.RespondServiceError(c, "get_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	if err := h.documents.DeleteDocument(c.Request.Context(), userID, docID); err != nil {
		response.RespondServiceError(c, "delete_document_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/documents/:id/reanalyze
func (h *DocumentHandler) Reanalyze(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	job, err := h.processing.Reanalyze(c.Request.Context(), userID, docID)
	if err != nil {
		response.RespondServiceError(c, "reanalyze_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/documents/:id/analyses
func (h *DocumentHandler) ListAnalyses(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	analyses, err := h.documents.ListAnalyses(c.Request.Context(), userID, docID)
	if err != nil {
		response.RespondServiceError(c, "list_analyses_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"analyses": analyses})
}

// GET /api/documents/:id/findings
func (h *DocumentHandler) ListFindings(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	findings, err := h.documents.ListFindingsByDocument(c.Request.Context(), userID, docID)
	if err != nil {
		response.RespondServiceError(c, "list_findings_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"findings": findings})
}

// GET /api/documents/:id/findings/export
func (h *DocumentHandler) ExportFindings(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "invalid_document_id")
	if !ok {
		return
	}
	b, filename, err := h.exporter.ExportDocumentFindings(c.Request.Context(), userID, docID)
	if err != nil {
		response.RespondServiceError(c, "export_findings_failed", err)
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = fmt.Sprintf("attachment; filename=%q", "findings.xlsx")
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, xlsxContentType, b)
}
