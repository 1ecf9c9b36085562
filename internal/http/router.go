package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/studystreak/studystreak-backend/internal/http/handlers"
	httpMW "github.com/studystreak/studystreak-backend/internal/http/middleware"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	ArtifactHandler *httpH.ArtifactHandler
	MaterialHandler *httpH.MaterialHandler
	QuizHandler     *httpH.QuizHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("studystreak-backend"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAPIKey())
		}

		// Materials
		if cfg.MaterialHandler != nil {
			api.POST("/materials", cfg.MaterialHandler.CreateMaterial)
			api.GET("/materials", cfg.MaterialHandler.ListMaterials)
			api.GET("/materials/:id", cfg.MaterialHandler.GetMaterial)
			api.DELETE("/materials/:id", cfg.MaterialHandler.DeleteMaterial)
			api.GET("/materials/:id/similar", cfg.MaterialHandler.SimilarMaterials)
		}

		// Artifacts
		if cfg.ArtifactHandler != nil {
			api.GET("/materials/:id/artifacts/:type", cfg.ArtifactHandler.GetArtifact)
			api.POST("/materials/:id/artifacts/:type/generate", cfg.ArtifactHandler.GenerateArtifact)
			api.GET("/materials/:id/artifacts/:type/versions", cfg.ArtifactHandler.ListVersions)
			api.PUT("/materials/:id/artifacts/:type", cfg.ArtifactHandler.SaveEdit)
			api.POST("/materials/:id/generate", cfg.ArtifactHandler.GenerateRun)
			api.POST("/materials/:id/artifact-versions/:versionId/restore", cfg.ArtifactHandler.Restore)
			api.GET("/artifact-versions/:id", cfg.ArtifactHandler.GetVersion)
		}

		// Quiz attempts
		if cfg.QuizHandler != nil {
			api.POST("/artifact-versions/:id/attempts", cfg.QuizHandler.StartAttempt)
			api.POST("/attempts/:id/submit", cfg.QuizHandler.SubmitAttempt)
			api.GET("/attempts/:id", cfg.QuizHandler.GetAttempt)
		}
	}

	return r
}
