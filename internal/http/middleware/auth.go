package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// AuthMiddleware guards the API with a shared service key. Callers present
// it either as X-API-Key or as a bearer token.
type AuthMiddleware struct {
	log    *logger.Logger
	apiKey string
}

func NewAuthMiddleware(baseLog *logger.Logger, apiKey string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    baseLog.With("Middleware", "AuthMiddleware"),
		apiKey: strings.TrimSpace(apiKey),
	}
}

func (am *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		// No key configured means an open deployment, typically local dev.
		if am.apiKey == "" {
			c.Next()
			return
		}
		presented := extractAPIKey(c)
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(am.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid api key", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

func extractAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
