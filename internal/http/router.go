package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/docsentinel-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docsentinel-backend/internal/http/middleware"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	DocumentHandler *httpH.DocumentHandler
	FindingHandler  *httpH.FindingHandler
	JobHandler      *httpH.JobHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("docsentinel"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.POST("/documents/upload", cfg.DocumentHandler.Upload)
			protected.GET("/documents", cfg.DocumentHandler.List)
			protected.GET("/documents/:id", cfg.DocumentHandler.Get)
			protected.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
			protected.POST("/documents/:id/reanalyze", cfg.DocumentHandler.Reanalyze)
			protected.GET("/documents/:id/analyses", cfg.DocumentHandler.ListAnalyses)
			protected.GET("/documents/:id/findings", cfg.DocumentHandler.ListFindings)
			protected.GET("/documents/:id/findings/export", cfg.DocumentHandler.ExportFindings)
		}

		// Findings
		if cfg.FindingHandler != nil {
			protected.GET("/analyses/:id/findings", cfg.FindingHandler.ListByAnalysis)
			protected.POST("/findings/:id/resolve", cfg.FindingHandler.Resolve)
			protected.PATCH("/findings/:id", cfg.FindingHandler.Update)
		}

		// Job
		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
