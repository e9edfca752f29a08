package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ProjectionHandler struct {
	projections ProjectionService
}

func NewProjectionHandler(projections ProjectionService) *ProjectionHandler {
	return &ProjectionHandler{projections: projections}
}

// Latest godoc
// @Summary Latest capacity projections
// @Tags projections
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /projections [get]
func (h *ProjectionHandler) Latest(c *gin.Context) {
	reports, generatedAt := h.projections.LatestProjections()
	if generatedAt.IsZero() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no projection has completed yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at": generatedAt.UTC().Format(time.RFC3339),
		"data":         reports,
		"count":        len(reports),
	})
}

// Run godoc
// @Summary Run a capacity projection now
// @Description Cancels any projection already in flight.
// @Tags projections
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /projections/run [post]
func (h *ProjectionHandler) Run(c *gin.Context) {
	reports, err := h.projections.RequestProjection(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  reports,
		"count": len(reports),
	})
}
