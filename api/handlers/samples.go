package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/orchestrator"
)

type SampleHandler struct {
	sink SampleSink
}

func NewSampleHandler(sink SampleSink) *SampleHandler {
	return &SampleHandler{sink: sink}
}

type IngestResponse struct {
	Accepted  int      `json:"accepted"`
	Discarded int      `json:"discarded"`
	Alerts    []string `json:"alerts,omitempty"`
}

// Ingest godoc
// @Summary Push metric samples
// @Description Accepts one sample or an array. Samples not newer than the latest stored for their series are discarded.
// @Tags samples
// @Accept json
// @Produce json
// @Param samples body []models.MetricSample true "Samples"
// @Success 200 {object} IngestResponse
// @Failure 400 {object} ErrorResponse
// @Router /samples [post]
func (h *SampleHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	samples, err := ingest.Decode(body, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	var resp IngestResponse
	for _, s := range samples {
		mutation, err := h.sink.Ingest(s)
		if errors.Is(err, orchestrator.ErrSampleDiscarded) {
			resp.Discarded++
			continue
		}
		if err != nil {
			respondError(c, err)
			return
		}
		resp.Accepted++
		if mutation.IsCreate() {
			resp.Alerts = append(resp.Alerts, mutation.Alert.ID)
		}
	}

	c.JSON(http.StatusOK, resp)
}
