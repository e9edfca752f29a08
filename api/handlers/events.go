package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/pkg/database/queries"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// EventRepository is the persisted scaling history, satisfied by
// *queries.ScalingEventRepository.
type EventRepository interface {
	GetByService(ctx context.Context, service string, from, to time.Time, limit int) ([]models.ScalingEvent, error)
	GetRecent(ctx context.Context, limit int) ([]models.ScalingEvent, error)
	GetStats(ctx context.Context, service string, from, to time.Time) (*queries.ScalingStats, error)
}

type EventHandler struct {
	recent EventSource
	repo   EventRepository
	limits ListLimits
}

// NewEventHandler takes a nil repo when persistence is disabled; listing
// then serves the in-memory window and stats are unavailable.
func NewEventHandler(recent EventSource, repo EventRepository, limits ListLimits) *EventHandler {
	return &EventHandler{recent: recent, repo: repo, limits: limits}
}

// List godoc
// @Summary List scaling events, newest first
// @Tags events
// @Produce json
// @Param service query string false "Filter by service"
// @Param source query string false "memory or db" default(db)
// @Param from query string false "RFC3339 start, database only"
// @Param to query string false "RFC3339 end, database only"
// @Param range query string false "Relative range such as 24h or 7d, database only"
// @Param limit query int false "Maximum events"
// @Success 200 {object} map[string]interface{}
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	service := c.Query("service")
	limit := h.limits.parse(c)

	if h.repo == nil || c.Query("source") == "memory" {
		events := h.recent.RecentEvents(service, limit)
		c.JSON(http.StatusOK, gin.H{
			"source": "memory",
			"data":   events,
			"count":  len(events),
		})
		return
	}

	ctx := c.Request.Context()
	if service == "" {
		events, err := h.repo.GetRecent(ctx, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"source": "db",
			"data":   events,
			"count":  len(events),
		})
		return
	}

	from, to := parseTimeRange(c, time.Now())
	events, err := h.repo.GetByService(ctx, service, from, to, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":  "db",
		"service": service,
		"from":    from,
		"to":      to,
		"data":    events,
		"count":   len(events),
	})
}

// Stats godoc
// @Summary Scaling statistics for one service
// @Tags events
// @Produce json
// @Param service query string true "Service name"
// @Param from query string false "RFC3339 start"
// @Param to query string false "RFC3339 end"
// @Param range query string false "Relative range such as 24h or 7d"
// @Success 200 {object} queries.ScalingStats
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /events/stats [get]
func (h *EventHandler) Stats(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scaling statistics require the database"})
		return
	}

	service := c.Query("service")
	if service == "" {
		badRequest(c, "service is required")
		return
	}

	from, to := parseTimeRange(c, time.Now())
	stats, err := h.repo.GetStats(c.Request.Context(), service, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
