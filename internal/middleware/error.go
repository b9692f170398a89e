package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/psicare/manager-api/internal/handler"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

// ErrorHandler logs the errors recorded by handlers and, unless something
// was already written, answers with the envelope of the last one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		last := c.Errors.Last()
		status, message := resolve(last)

		for _, e := range c.Errors {
			event := log.Warn()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Interface("meta", e.Meta).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, handler.NewErrorResponse(message))
	}
}

func resolve(e *gin.Error) (int, string) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(e.Err, &appErr):
		return appErr.StatusCode(), apperrors.ExtractMessage(appErr)
	case e.IsType(gin.ErrorTypeBind):
		return http.StatusBadRequest, e.Err.Error()
	case errors.Is(e.Err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timeout"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
