package middleware

import (
	"fmt"
	"net/http"

	"github.com/erp/customerdir/internal/infrastructure/logger"
	"github.com/erp/customerdir/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BodyLimit rejects customer payloads larger than maxBytes. A declared
// Content-Length is checked before the handler runs. Bodies of unknown length
// are capped while read; the handler that hits the cap reports it with
// AbortTooLarge.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			AbortTooLarge(c, maxBytes)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// AbortTooLarge writes the 413 envelope for a body over limit bytes
func AbortTooLarge(c *gin.Context, limit int64) {
	logger.GetGinLogger(c).Warn("request body too large",
		zap.Int64("limit", limit),
		zap.Int64("content_length", c.Request.ContentLength),
	)
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeTooLarge,
		fmt.Sprintf("Request body exceeds the limit of %d bytes", limit),
		GetRequestID(c),
	))
}
