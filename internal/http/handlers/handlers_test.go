package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type fakeProcessing struct {
	services.DocumentProcessingService
	gotFiles []string
	gotBody  []string
	gotMode  string
	err      error
}

func (f *fakeProcessing) Ingest(ctx context.Context, userID uuid.UUID, files []services.UploadedFile, mode string) (*services.IngestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotMode = mode
	docs := make([]*types.Document, 0, len(files))
	for _, file := range files {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		f.gotFiles = append(f.gotFiles, file.OriginalName)
		f.gotBody = append(f.gotBody, string(b))
		docs = append(docs, &types.Document{ID: uuid.New(), UserID: userID, OriginalFilename: file.OriginalName})
	}
	return &services.IngestResult{Job: &types.ProcessingJob{ID: uuid.New(), UserID: userID}, Documents: docs}, nil
}

func (f *fakeProcessing) Reanalyze(ctx context.Context, userID, documentID uuid.UUID) (*types.ProcessingJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.ProcessingJob{ID: uuid.New(), UserID: userID, Priority: 1}, nil
}

type fakeDocuments struct {
	services.DocumentService
	owner     uuid.UUID
	docID     uuid.UUID
	gotLimit  int
	gotUpdate services.FindingUpdate
	gotNotes  *string
	deleteErr error
}

func (f *fakeDocuments) ListDocuments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	f.gotLimit = limit
	return []*types.Document{{ID: f.docID, UserID: userID}}, nil
}

func (f *fakeDocuments) GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error) {
	if userID != f.owner || documentID != f.docID {
		return nil, fmt.Errorf("document %s: %w", documentID, pkgerrors.ErrNotFound)
	}
	return &types.Document{ID: documentID, UserID: userID}, nil
}

func (f *fakeDocuments) DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	return f.deleteErr
}

func (f *fakeDocuments) ResolveFinding(ctx context.Context, userID, findingID uuid.UUID, resolvedBy string, notes *string) (*types.Finding, error) {
	f.gotNotes = notes
	return &types.Finding{ID: findingID, Status: types.FindingResolved}, nil
}

func (f *fakeDocuments) UpdateFinding(ctx context.Context, userID, findingID uuid.UUID, in services.FindingUpdate) (*types.Finding, error) {
	f.gotUpdate = in
	if in.Title == nil && in.Severity == nil {
		return nil, fmt.Errorf("nothing to update: %w", pkgerrors.ErrInvalidArgument)
	}
	return &types.Finding{ID: findingID}, nil
}

type fakeExporter struct{}

func (fakeExporter) ExportDocumentFindings(ctx context.Context, userID, documentID uuid.UUID) ([]byte, string, error) {
	return []byte("xlsx-bytes"), "contract v2.pdf-findings.xlsx", nil
}

type handlerFixture struct {
	engine *gin.Engine
	proc   *fakeProcessing
	docs   *fakeDocuments
	userID uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		proc:   &fakeProcessing{},
		userID: uuid.New(),
	}
	f.docs = &fakeDocuments{owner: f.userID, docID: uuid.New()}

	dh := NewDocumentHandler(logger.NewNop(), f.proc, f.docs, fakeExporter{})
	fh := NewFindingHandler(f.docs)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			id := uuid.MustParse(raw)
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id}))
		}
		c.Next()
	})
	r.POST("/documents/upload", dh.Upload)
	r.GET("/documents", dh.List)
	r.GET("/documents/:id", dh.Get)
	r.DELETE("/documents/:id", dh.Delete)
	r.POST("/documents/:id/reanalyze", dh.Reanalyze)
	r.GET("/documents/:id/findings/export", dh.ExportFindings)
	r.POST("/findings/:id/resolve", fh.Resolve)
	r.PATCH("/findings/:id", fh.Update)
	f.engine = r
	return f
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("X-Test-User", f.userID.String())
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, mode string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, body := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(body))
	}
	if mode != "" {
		_ = mw.WriteField("mode", mode)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadQueuesJob(t *testing.T) {
	f := newHandlerFixture(t)
	body, ct := multipartBody(t, "cross_document", map[string]string{"a.txt": "alpha"})
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if f.proc.gotMode != "cross_document" || len(f.proc.gotFiles) != 1 || f.proc.gotBody[0] != "alpha" {
		t.Fatalf("mode=%q files=%v body=%v", f.proc.gotMode, f.proc.gotFiles, f.proc.gotBody)
	}
	var out struct {
		Job       types.ProcessingJob `json:"job"`
		Documents []types.Document    `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Job.ID == uuid.Nil || len(out.Documents) != 1 {
		t.Fatalf("out=%+v", out)
	}
}

func TestUploadErrors(t *testing.T) {
	cases := []struct {
		name   string
		files  map[string]string
		err    error
		status int
	}{
		{"no files", nil, nil, http.StatusBadRequest},
		{"invalid mode", map[string]string{"a.txt": "x"}, fmt.Errorf("mode: %w", pkgerrors.ErrInvalidArgument), http.StatusBadRequest},
		{"storage failure", map[string]string{"a.txt": "x"}, fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.proc.err = tc.err
			body, ct := multipartBody(t, "", tc.files)
			req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
			req.Header.Set("Content-Type", ct)
			if rec := f.do(req); rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestUploadRequiresUser(t *testing.T) {
	f := newHandlerFixture(t)
	body, ct := multipartBody(t, "", map[string]string{"a.txt": "x"})
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestGetDocumentStatuses(t *testing.T) {
	f := newHandlerFixture(t)
	cases := []struct {
		path   string
		status int
	}{
		{"/documents/" + f.docs.docID.String(), http.StatusOK},
		{"/documents/" + uuid.NewString(), http.StatusNotFound},
		{"/documents/not-a-uuid", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := f.do(httptest.NewRequest(http.MethodGet, tc.path, nil)); rec.Code != tc.status {
			t.Fatalf("%s status=%d want %d", tc.path, rec.Code, tc.status)
		}
	}
}

func TestListDocumentsPagination(t *testing.T) {
	f := newHandlerFixture(t)
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/documents?limit=1000", nil)); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if f.docs.gotLimit != 200 {
		t.Fatalf("limit=%d", f.docs.gotLimit)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/documents?offset=-1", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	f := newHandlerFixture(t)
	path := "/documents/" + f.docs.docID.String()
	if rec := f.do(httptest.NewRequest(http.MethodDelete, path, nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
	f.docs.deleteErr = fmt.Errorf("document is analyzing: %w", pkgerrors.ErrConflict)
	if rec := f.do(httptest.NewRequest(http.MethodDelete, path, nil)); rec.Code != http.StatusConflict {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestReanalyzeAccepted(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/documents/"+f.docs.docID.String()+"/reanalyze", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestExportFindingsHeaders(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/documents/"+f.docs.docID.String()+"/findings/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("content-type=%q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment;") || !strings.Contains(got, "contract v2.pdf-findings.xlsx") {
		t.Fatalf("disposition=%q", got)
	}
	if rec.Body.String() != "xlsx-bytes" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestResolveFindingOptionalBody(t *testing.T) {
	f := newHandlerFixture(t)
	path := "/findings/" + uuid.NewString() + "/resolve"
	if rec := f.do(httptest.NewRequest(http.MethodPost, path, nil)); rec.Code != http.StatusOK {
		t.Fatalf("empty body status=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"notes":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if f.docs.gotNotes == nil || *f.docs.gotNotes != "confirmed" {
		t.Fatalf("notes=%v", f.docs.gotNotes)
	}
	bad := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{`))
	bad.Header.Set("Content-Type", "application/json")
	if rec := f.do(bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", rec.Code)
	}
}

func TestUpdateFinding(t *testing.T) {
	f := newHandlerFixture(t)
	path := "/findings/" + uuid.NewString()
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"severity":"high","suggested_fix":"align totals"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if f.docs.gotUpdate.Severity == nil || *f.docs.gotUpdate.Severity != "high" {
		t.Fatalf("update=%+v", f.docs.gotUpdate)
	}
	if f.docs.gotUpdate.SuggestedFix == nil || *f.docs.gotUpdate.SuggestedFix != "align totals" {
		t.Fatalf("suggested fix=%v", f.docs.gotUpdate.SuggestedFix)
	}
	empty := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{}`))
	empty.Header.Set("Content-Type", "application/json")
	if rec := f.do(empty); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update status=%d", rec.Code)
	}
}
