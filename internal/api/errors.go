package api

import (
	"errors"
	"net/http"

	"fitclass/internal/apperr"
	"fitclass/internal/logger"

	"github.com/gin-gonic/gin"
)

// WriteError maps the core's error taxonomy to a transport status. This is
// the only place HTTP codes are attached to domain failures; the core stays
// transport-agnostic.
func WriteError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Error("unhandled internal error",
			"path", c.FullPath(),
			"method", c.Request.Method,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := statusFor(appErr.Kind)
	body := ErrorResponse{Error: appErr.Message, Kind: appErr.Kind.String()}
	if appErr.Kind == apperr.Internal {
		logger.Error("internal error",
			"path", c.FullPath(),
			"method", c.Request.Method,
			"error", err,
		)
		body.Error = "internal server error"
	}

	c.JSON(status, body)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidState:
		return http.StatusUnprocessableEntity
	case apperr.PolicyViolation:
		return http.StatusBadRequest
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.AccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
