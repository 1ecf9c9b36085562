package app

import (
	"github.com/gin-gonic/gin"

	internalhttp "github.com/studystreak/studystreak-backend/internal/http"
	httpH "github.com/studystreak/studystreak-backend/internal/http/handlers"
	httpMW "github.com/studystreak/studystreak-backend/internal/http/middleware"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

type Handlers struct {
	Artifact *httpH.ArtifactHandler
	Material *httpH.MaterialHandler
	Quiz     *httpH.QuizHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, reposet Repos) Handlers {
	return Handlers{
		Artifact: httpH.NewArtifactHandler(log, serviceset.Generation),
		Material: httpH.NewMaterialHandler(log, reposet.Materials, serviceset.Recommendations),
		Quiz:     httpH.NewQuizHandler(log, serviceset.Quiz),
		Health:   httpH.NewHealthHandler(),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlerset Handlers) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:             log,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, cfg.APIKey),
		ArtifactHandler: handlerset.Artifact,
		MaterialHandler: handlerset.Material,
		QuizHandler:     handlerset.Quiz,
		HealthHandler:   handlerset.Health,
	})
}
