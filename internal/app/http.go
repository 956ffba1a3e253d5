package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/http"
	httpH "github.com/yungbote/docsentinel-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docsentinel-backend/internal/http/middleware"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Document *httpH.DocumentHandler
	Finding  *httpH.FindingHandler
	Job      *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Document: httpH.NewDocumentHandler(log, services.Processing, services.Documents, services.Exporter),
		Finding:  httpH.NewFindingHandler(services.Documents),
		Job:      httpH.NewJobHandler(services.Documents),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         observability.Current(),
		AllowedOrigins:  cfg.AllowedOrigins,
		AuthMiddleware:  middleware.Auth,
		DocumentHandler: handlers.Document,
		FindingHandler:  handlers.Finding,
		JobHandler:      handlers.Job,
		HealthHandler:   handlers.Health,
	})
}
