package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type ServiceHandler struct {
	services ServiceDirectory
	limits   ListLimits
}

func NewServiceHandler(services ServiceDirectory, limits ListLimits) *ServiceHandler {
	return &ServiceHandler{services: services, limits: limits}
}

type OverrideRequest struct {
	TargetInstances *int   `json:"target_instances" binding:"required"`
	Actor           string `json:"actor" binding:"required,max=128"`
}

type OverrideResponse struct {
	Decision   models.ScalingDecision `json:"decision"`
	Dispatched bool                   `json:"dispatched"`
}

// List godoc
// @Summary List registered services
// @Tags services
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /services [get]
func (h *ServiceHandler) List(c *gin.Context) {
	services := h.services.Services()
	c.JSON(http.StatusOK, gin.H{
		"data":  services,
		"count": len(services),
	})
}

// Get godoc
// @Summary Get a service's live state
// @Tags services
// @Produce json
// @Param name path string true "Service name"
// @Success 200 {object} models.ServiceInstance
// @Failure 404 {object} ErrorResponse
// @Router /services/{name} [get]
func (h *ServiceHandler) Get(c *gin.Context) {
	svc, ok := h.services.Service(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service not found"})
		return
	}
	c.JSON(http.StatusOK, svc)
}

// Register godoc
// @Summary Register a service or update its bounds
// @Tags services
// @Accept json
// @Produce json
// @Param name path string true "Service name"
// @Param service body models.ServiceInstance true "Service"
// @Success 200 {object} models.ServiceInstance
// @Failure 422 {object} ErrorResponse
// @Router /services/{name} [put]
func (h *ServiceHandler) Register(c *gin.Context) {
	var svc models.ServiceInstance
	if err := c.ShouldBindJSON(&svc); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	svc.Name = c.Param("name")

	registered, err := h.services.RegisterService(svc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, registered)
}

// Override godoc
// @Summary Manually set a service's instance count
// @Description The target is clamped to the service bounds. Overrides bypass cooldown.
// @Tags services
// @Accept json
// @Produce json
// @Param name path string true "Service name"
// @Param request body OverrideRequest true "Target"
// @Success 202 {object} OverrideResponse
// @Success 200 {object} OverrideResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /services/{name}/override [post]
func (h *ServiceHandler) Override(c *gin.Context) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	decision, dispatched, err := h.services.ManualOverride(c.Param("name"), *req.TargetInstances, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if dispatched {
		status = http.StatusAccepted
	}
	c.JSON(status, OverrideResponse{Decision: decision, Dispatched: dispatched})
}

// Metrics godoc
// @Summary Recent samples for one service metric
// @Tags services
// @Produce json
// @Param name path string true "Service name"
// @Param metric path string true "Metric, e.g. cpu or requests"
// @Param limit query int false "Newest samples to return"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /services/{name}/metrics/{metric} [get]
func (h *ServiceHandler) Metrics(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.services.Service(name); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service not found"})
		return
	}

	metric := models.MetricKind(c.Param("metric"))
	history := h.services.History(name, metric)
	if limit := h.limits.parse(c); len(history) > limit {
		history = history[len(history)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"service": name,
		"metric":  metric,
		"data":    history,
		"count":   len(history),
	})
}
