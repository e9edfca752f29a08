package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DailyProjection struct {
	Date                time.Time       `json:"date"`
	ProjectedDemand     float64         `json:"projected_demand"`
	RecommendedCapacity int             `json:"recommended_capacity"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost"`
	UtilizationRate     float64         `json:"utilization_rate"`
	SeasonalMultiplier  float64         `json:"seasonal_multiplier"`
	IsSaturday          bool            `json:"is_saturday"`
	InSeason            bool            `json:"in_season"`
}

type RecommendationType string

const (
	RecommendScaleUp  RecommendationType = "scale_up"
	RecommendSchedule RecommendationType = "schedule"
	RecommendOptimize RecommendationType = "optimize"
)

// Recommendation is advisory output derived from a projection run.
type Recommendation struct {
	Type    RecommendationType `json:"type"`
	Message string             `json:"message"`
}

// ProjectionReport bundles one projection run.
type ProjectionReport struct {
	Service         string            `json:"service"`
	GeneratedAt     time.Time         `json:"generated_at"`
	HorizonDays     int               `json:"horizon_days"`
	CurrentCapacity int               `json:"current_capacity"`
	Days            []DailyProjection `json:"days"`
	Recommendations []Recommendation  `json:"recommendations"`
	TotalCost       decimal.Decimal   `json:"total_cost"`
}
