package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/services"
)

// RespondServiceError maps domain and gateway errors onto the HTTP error
// taxonomy. A missing artifact is 404: "not generated yet" is a normal
// state, not a server failure. Backend exhaustion is 503 so clients retry;
// a rejected credential or garbled model output is 502 because retrying the
// same request cannot help.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoArtifact):
		RespondError(c, http.StatusNotFound, "no_artifact_yet", err)
	case errors.Is(err, services.ErrMaterialNotFound):
		RespondError(c, http.StatusNotFound, "material_not_found", err)
	case errors.Is(err, services.ErrAttemptNotFound):
		RespondError(c, http.StatusNotFound, "attempt_not_found", err)
	case errors.Is(err, services.ErrAttemptCompleted):
		RespondError(c, http.StatusConflict, "attempt_completed", err)
	case modelgateway.IsUnavailable(err):
		RespondError(c, http.StatusServiceUnavailable, string(modelgateway.ErrorUnavailable), err)
	case modelgateway.IsUnauthorized(err):
		RespondError(c, http.StatusBadGateway, string(modelgateway.ErrorUnauthorized), err)
	case modelgateway.IsMalformed(err):
		RespondError(c, http.StatusBadGateway, string(modelgateway.ErrorMalformed), err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
