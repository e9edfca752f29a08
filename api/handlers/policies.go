package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type PolicyHandler struct {
	policies  PolicyService
	rulesFile string
}

// NewPolicyHandler takes the rules file path used by POST /rules/reload.
func NewPolicyHandler(policies PolicyService, rulesFile string) *PolicyHandler {
	return &PolicyHandler{policies: policies, rulesFile: rulesFile}
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// List godoc
// @Summary List scaling policies
// @Tags policies
// @Produce json
// @Param service query string false "Filter by service"
// @Success 200 {object} map[string]interface{}
// @Router /policies [get]
func (h *PolicyHandler) List(c *gin.Context) {
	service := c.Query("service")
	policies := h.policies.Policies()
	if service != "" {
		filtered := policies[:0]
		for _, p := range policies {
			if p.Service == service {
				filtered = append(filtered, p)
			}
		}
		policies = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  policies,
		"count": len(policies),
	})
}

// Get godoc
// @Summary Get a scaling policy
// @Tags policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} models.ScalingPolicy
// @Failure 404 {object} ErrorResponse
// @Router /policies/{id} [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	p, ok := h.policies.Policy(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "policy not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Upsert godoc
// @Summary Create or replace a scaling policy
// @Description Invalid policies are rejected and the previous version stays in effect.
// @Tags policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param policy body models.ScalingPolicy true "Policy"
// @Success 200 {object} models.ScalingPolicy
// @Failure 422 {object} ErrorResponse
// @Router /policies/{id} [put]
func (h *PolicyHandler) Upsert(c *gin.Context) {
	var p models.ScalingPolicy
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	id := c.Param("id")
	if p.ID != "" && p.ID != id {
		badRequest(c, "policy id in body does not match path")
		return
	}
	p.ID = id

	saved, err := h.policies.UpsertPolicy(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// SetEnabled godoc
// @Summary Enable or disable a scaling policy
// @Tags policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param request body ToggleRequest true "Enabled flag"
// @Success 200 {object} models.ScalingPolicy
// @Failure 404 {object} ErrorResponse
// @Router /policies/{id}/enabled [patch]
func (h *PolicyHandler) SetEnabled(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	p, err := h.policies.TogglePolicy(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete godoc
// @Summary Delete a scaling policy
// @Tags policies
// @Param id path string true "Policy ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /policies/{id} [delete]
func (h *PolicyHandler) Delete(c *gin.Context) {
	if err := h.policies.DeletePolicy(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListThresholds godoc
// @Summary List alert thresholds
// @Tags thresholds
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /thresholds [get]
func (h *PolicyHandler) ListThresholds(c *gin.Context) {
	thresholds := h.policies.Thresholds()
	c.JSON(http.StatusOK, gin.H{
		"data":  thresholds,
		"count": len(thresholds),
	})
}

// UpsertThreshold godoc
// @Summary Create or replace an alert threshold
// @Description Thresholds are keyed by service and metric; service "all" applies to every service.
// @Tags thresholds
// @Accept json
// @Produce json
// @Param threshold body models.AlertThreshold true "Threshold"
// @Success 200 {object} models.AlertThreshold
// @Failure 422 {object} ErrorResponse
// @Router /thresholds [put]
func (h *PolicyHandler) UpsertThreshold(c *gin.Context) {
	var t models.AlertThreshold
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	saved, err := h.policies.UpsertThreshold(c.Request.Context(), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ReloadRules godoc
// @Summary Reload the rules file
// @Description A file that fails validation leaves the running configuration untouched.
// @Tags policies
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /rules/reload [post]
func (h *PolicyHandler) ReloadRules(c *gin.Context) {
	if h.rulesFile == "" {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no rules file configured"})
		return
	}
	if err := h.policies.ReloadRules(h.rulesFile); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "reloaded",
		"policies": len(h.policies.Policies()),
	})
}
