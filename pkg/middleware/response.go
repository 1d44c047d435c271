package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wms-platform/production-service/pkg/errors"
)

// Envelope wraps every API response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error half of the envelope
type ErrorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// RespondOK writes a 200 success envelope
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// RespondCreated writes a 201 success envelope
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// AbortWithError writes the error envelope for err. Errors that are not
// AppErrors are reported as SERVICE_ERROR without leaking their text.
func AbortWithError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	if appErr == nil {
		appErr = errors.ErrServiceError("")
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: GetRequestID(c),
		},
	})
}

// ErrorHandler renders the last error attached with c.Error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			AbortWithError(c, c.Errors.Last().Err)
		}
	}
}

// WrapHandler adapts handlers that return errors
func WrapHandler(handler func(*gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler(c); err != nil {
			_ = c.Error(err)
		}
	}
}

// NoRoute handles unknown routes with the error envelope
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		AbortWithError(c, errors.ErrNotFound("route"))
	}
}
