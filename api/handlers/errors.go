package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/orchestrator"
	"github.com/OldStager01/wedding-autoscaler/internal/scaler"
	"github.com/OldStager01/wedding-autoscaler/pkg/validation"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func statusFor(err error) int {
	var cfgErr *validation.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, alert.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, alert.ErrAlertNotFound),
		errors.Is(err, orchestrator.ErrPolicyNotFound),
		errors.Is(err, scaler.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, scaler.ErrInvalidTarget),
		errors.Is(err, ingest.ErrInvalidSample):
		return http.StatusBadRequest
	case errors.Is(err, scaler.ErrQueueFull), errors.Is(err, scaler.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status it maps to. Internal errors are
// logged and not echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
		c.JSON(status, ErrorResponse{Error: "internal error"})
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var cfgErr *validation.ConfigError
	if errors.As(err, &cfgErr) {
		resp.Field = cfgErr.Field
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
