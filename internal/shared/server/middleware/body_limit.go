package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-analyzer/internal/shared/server/respond"
)

// BodyLimit rejects requests whose body exceeds maxBytes. Bodies without a
// declared length are capped while they are read.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds limit", nil)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
