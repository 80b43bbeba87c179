package middleware

import (
	"net/http"

	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Status reports are a handful of fields.
const DefaultMaxRequestSize = 64 << 10

// RequestSizeLimitMiddleware caps request bodies at maxSize bytes.
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.AbortWithError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
