package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/wedding-autoscaler/pkg/config"
)

const (
	defaultListLimit = 100
	defaultMaxLimit  = 1000
)

// ListLimits bounds the ?limit= parameter of list endpoints.
type ListLimits struct {
	def int
	max int
}

func NewListLimits(cfg *config.APIConfig) ListLimits {
	l := ListLimits{def: defaultListLimit, max: defaultMaxLimit}
	if cfg == nil {
		return l
	}
	if cfg.DefaultLimit > 0 {
		l.def = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 {
		l.max = cfg.MaxLimit
	}
	if l.def > l.max {
		l.def = l.max
	}
	return l
}

func (l ListLimits) parse(c *gin.Context) int {
	limit := l.def
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > l.max {
				limit = l.max
			}
		}
	}
	return limit
}

// parseTimeRange reads from/to (RFC3339) or a relative range such as 24h or
// 7d. The default is the last day.
func parseTimeRange(c *gin.Context, now time.Time) (time.Time, time.Time) {
	to := now
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			from = parsed
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			to = parsed
		}
	}
	if rangeStr := c.Query("range"); rangeStr != "" {
		from = to.Add(-parseDuration(rangeStr))
	}

	return from, to
}

func parseDuration(s string) time.Duration {
	if len(s) < 2 {
		return time.Hour
	}

	unit := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return time.Hour
	}

	switch unit {
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return time.Hour
	}
}
