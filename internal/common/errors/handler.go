package errors

import (
	"github.com/gin-gonic/gin"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns errors returned by services into JSON responses.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Normalize guarantees an *AppError.
func Normalize(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return NewInternalError(err)
}

// Respond writes the error envelope. Unexpected errors are logged with their
// details but only the generic message reaches the client.
func (h *ErrorHandler) Respond(c *gin.Context, err error) {
	appErr := Normalize(err)
	status := HTTPStatus(appErr.Code)

	if status >= 500 && h.logger != nil {
		h.logger.Error("request failed", map[string]interface{}{
			"path":          c.FullPath(),
			"method":        c.Request.Method,
			"errorCode":     string(appErr.Code),
			"message":       appErr.Message,
			"details":       appErr.Details,
			"retryable":     appErr.Retryable,
			"errorCategory": GetErrorCategory(appErr.Code),
		})
	}

	body := gin.H{
		"success": false,
		"error":   appErr.Message,
		"code":    string(appErr.Code),
	}
	if status < 500 && appErr.Details != "" {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}
