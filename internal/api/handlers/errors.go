package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps the domain error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrMissingTenant):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDataQuality):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}

	body := gin.H{"error": message, "details": err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, field, message string) {
	errorResponse(c, "invalid request", domain.NewValidationError(field, "%s", message))
}
