package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type AlertHandler struct {
	alerts AlertService
}

func NewAlertHandler(alerts AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// ExpectedVersion is embedded by every alert mutation request. Zero or
// absent skips the version check.
type ExpectedVersion struct {
	ExpectedVersion uint64 `json:"expected_version"`
}

type AcknowledgeRequest struct {
	ExpectedVersion
	Actor string `json:"actor" binding:"required,max=128"`
}

type EscalateRequest struct {
	ExpectedVersion
	Recipients []string `json:"recipients" binding:"required,min=1,dive,required"`
}

type ResolveRequest struct {
	ExpectedVersion
}

// AlertMutationResponse reports the alert after the call and whether the
// call changed it. Repeating a transition returns changed=false.
type AlertMutationResponse struct {
	Alert   models.ScalingAlert `json:"alert"`
	Changed bool                `json:"changed"`
}

// List godoc
// @Summary List alerts
// @Tags alerts
// @Produce json
// @Param status query string false "open, resolved or all" default(open)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	filter := alert.Filter(c.DefaultQuery("status", string(alert.FilterOpen)))
	switch filter {
	case alert.FilterOpen, alert.FilterResolved, alert.FilterAll:
	default:
		badRequest(c, "status must be one of open, resolved, all")
		return
	}

	alerts := h.alerts.ListAlerts(filter)
	c.JSON(http.StatusOK, gin.H{
		"status": filter,
		"data":   alerts,
		"count":  len(alerts),
	})
}

// Get godoc
// @Summary Get an alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} models.ScalingAlert
// @Failure 404 {object} ErrorResponse
// @Router /alerts/{id} [get]
func (h *AlertHandler) Get(c *gin.Context) {
	a, err := h.alerts.GetAlert(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Acknowledge godoc
// @Summary Acknowledge an alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body AcknowledgeRequest true "Acknowledgement"
// @Success 200 {object} AlertMutationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	a, changed, err := h.alerts.AcknowledgeAlert(c.Param("id"), req.Actor, req.ExpectedVersion.ExpectedVersion)
	h.respond(c, a, changed, err)
}

// Escalate godoc
// @Summary Escalate an alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body EscalateRequest true "Recipients to add"
// @Success 200 {object} AlertMutationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /alerts/{id}/escalate [post]
func (h *AlertHandler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	a, changed, err := h.alerts.EscalateAlert(c.Param("id"), req.Recipients, req.ExpectedVersion.ExpectedVersion)
	h.respond(c, a, changed, err)
}

// Resolve godoc
// @Summary Resolve an alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body ResolveRequest false "Optional version check"
// @Success 200 {object} AlertMutationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	a, changed, err := h.alerts.ResolveAlert(c.Param("id"), req.ExpectedVersion.ExpectedVersion)
	h.respond(c, a, changed, err)
}

func (h *AlertHandler) respond(c *gin.Context, a models.ScalingAlert, changed bool, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AlertMutationResponse{Alert: a, Changed: changed})
}
