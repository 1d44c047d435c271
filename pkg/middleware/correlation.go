package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wms-platform/production-service/pkg/logging"
)

// Context keys
const (
	ContextKeyRequestID  = "requestId"
	ContextKeyOperatorID = "operatorId"
)

// HTTP header names
const (
	HeaderRequestID  = "X-Request-ID"
	HeaderOperatorID = "X-Operator-ID"
)

// RequestID middleware generates or propagates request IDs and copies them
// onto the request context for the logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// Operator reads the acting operator from X-Operator-ID
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if operatorID := c.GetHeader(HeaderOperatorID); operatorID != "" {
			c.Set(ContextKeyOperatorID, operatorID)
			c.Request = c.Request.WithContext(logging.ContextWithOperatorID(c.Request.Context(), operatorID))
		}
		c.Next()
	}
}

// Logger logs every request except health probes
func Logger(logger *logging.Logger) gin.HandlerFunc {
	skip := map[string]bool{"/health": true, "/ready": true, "/metrics": true}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if skip[path] {
			return
		}
		logger.HTTPRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// Recovery turns panics into SERVICE_ERROR responses
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Panic(c.Request.Context(), r)
				AbortWithError(c, nil)
			}
		}()
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetOperatorID returns the operator id set by Operator
func GetOperatorID(c *gin.Context) string {
	return c.GetString(ContextKeyOperatorID)
}
