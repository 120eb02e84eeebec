package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox-janitor-go/internal/apperrors"
)

// respondError maps the error taxonomy onto HTTP status codes with the
// standard error envelope.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Code:    http.StatusNotFound,
		})
	case errors.Is(err, apperrors.ErrUndoExpired):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "undo_expired",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "provider_unavailable",
			Message: err.Error(),
			Code:    http.StatusBadGateway,
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
}

// requireUser extracts the caller identity or rejects the request.
func requireUser(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		respondError(c, apperrors.Validationf("X-User-ID header is required"))
		return "", false
	}
	return uid, true
}
