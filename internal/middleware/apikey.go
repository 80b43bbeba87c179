package middleware

import (
	"crypto/subtle"
	"net/http"

	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

// AdminKeyMiddleware only lets through requests carrying one of keys in the
// X-API-Key header. With no keys configured it lets everything through.
func AdminKeyMiddleware(keys []string) gin.HandlerFunc {
	if len(keys) == 0 {
		logger.Warn("Admin endpoints are not protected: ADMIN_API_KEYS is empty")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		provided := c.GetHeader(APIKeyHeader)
		if provided == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, "API key required")
			return
		}

		matched := 0
		for _, key := range keys {
			matched |= subtle.ConstantTimeCompare([]byte(key), []byte(provided))
		}
		if matched != 1 {
			logger.WithRequestID(GetRequestID(c)).Warn("Rejected admin request",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			utils.AbortWithError(c, http.StatusForbidden, "Invalid API key")
			return
		}

		c.Next()
	}
}
