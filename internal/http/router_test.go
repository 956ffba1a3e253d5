package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	httpH "github.com/yungbote/docsentinel-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docsentinel-backend/internal/http/middleware"
	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type jobsOnly struct {
	services.DocumentService
	owner uuid.UUID
	jobID uuid.UUID
}

func (j *jobsOnly) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*types.ProcessingJob, error) {
	if userID != j.owner || jobID != j.jobID {
		return nil, pkgerrors.ErrNotFound
	}
	return &types.ProcessingJob{ID: jobID, UserID: userID, Status: types.JobQueued}, nil
}

func TestRouterAuthAndRouting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	auth, err := services.NewAuthService(log, "test-secret", "docsentinel")
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	owner := uuid.New()
	docs := &jobsOnly{owner: owner, jobID: uuid.New()}

	r := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		JobHandler:     httpH.NewJobHandler(docs),
		HealthHandler:  httpH.NewHealthHandler(nil),
	})

	token, err := auth.IssueToken(owner, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	stranger, _ := auth.IssueToken(uuid.New(), time.Hour)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"health is public", "/healthcheck", "", nethttp.StatusOK},
		{"missing token", "/api/jobs/" + docs.jobID.String(), "", nethttp.StatusUnauthorized},
		{"garbage token", "/api/jobs/" + docs.jobID.String(), "nope", nethttp.StatusUnauthorized},
		{"owner", "/api/jobs/" + docs.jobID.String(), token, nethttp.StatusOK},
		{"other user", "/api/jobs/" + docs.jobID.String(), stranger, nethttp.StatusNotFound},
		{"bad id", "/api/jobs/xyz", token, nethttp.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(nethttp.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if rec.Header().Get("X-Request-Id") == "" {
				t.Fatalf("missing request id header")
			}
		})
	}
}
