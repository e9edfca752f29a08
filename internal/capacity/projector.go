// Package capacity forecasts daily demand, capacity and cost for a service
// from its sample history and the wedding season calendar.
package capacity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OldStager01/wedding-autoscaler/internal/wedding"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const (
	SeasonMultiplier   = 1.5
	SaturdayMultiplier = 2.0
	SafetyBuffer       = 1.2

	DefaultSmoothingAlpha = 0.3
	optimizeThreshold     = 80.0
)

// SeasonalModel holds everything a projection needs besides the history.
type SeasonalModel struct {
	Season wedding.Season
	// UnitsPerInstance converts a sample value into instances of demand. Zero
	// means sample values are already expressed in instances.
	UnitsPerInstance     float64
	PerInstanceDailyCost decimal.Decimal
	CurrentCapacity      int
	SmoothingAlpha       float64
	// Start is the first projected day. Zero means the day after the newest
	// sample, or the day of Now when the history is empty.
	Start time.Time
	// Now anchors a projection without history. With no Start, no Now and no
	// history there is nothing to project from.
	Now      time.Time
	Location *time.Location
}

// Project returns one projection per day of the horizon.
func Project(history []models.MetricSample, horizonDays int, model SeasonalModel) []models.DailyProjection {
	days, _ := ProjectContext(context.Background(), history, horizonDays, model)
	return days
}

// ProjectContext is Project with cancellation checked between days.
func ProjectContext(ctx context.Context, history []models.MetricSample, horizonDays int, model SeasonalModel) ([]models.DailyProjection, error) {
	if horizonDays <= 0 {
		return nil, nil
	}

	loc := model.Location
	if loc == nil {
		loc = time.UTC
	}
	baseline := Baseline(history, model.SmoothingAlpha)
	if model.UnitsPerInstance > 0 {
		baseline /= model.UnitsPerInstance
	}
	start, ok := startDay(history, model.Start, model.Now, loc)
	if !ok {
		return nil, nil
	}

	out := make([]models.DailyProjection, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := start.AddDate(0, 0, i)
		inSeason := model.Season.Contains(day)
		saturday := day.Weekday() == time.Saturday

		multiplier := 1.0
		if inSeason {
			multiplier *= SeasonMultiplier
		}
		if saturday {
			multiplier *= SaturdayMultiplier
		}

		demand := baseline * multiplier
		recommended := int(math.Ceil(demand * SafetyBuffer))

		var utilization float64
		if model.CurrentCapacity > 0 {
			utilization = demand / float64(model.CurrentCapacity) * 100
		}

		out = append(out, models.DailyProjection{
			Date:                day,
			ProjectedDemand:     demand,
			RecommendedCapacity: recommended,
			EstimatedCost:       model.PerInstanceDailyCost.Mul(decimal.NewFromInt(int64(recommended))),
			UtilizationRate:     utilization,
			SeasonalMultiplier:  multiplier,
			IsSaturday:          saturday,
			InSeason:            inSeason,
		})
	}
	return out, nil
}

// Baseline is the exponentially weighted moving average of the history in
// chronological order. Negative values are treated as zero demand.
func Baseline(history []models.MetricSample, alpha float64) float64 {
	if len(history) == 0 {
		return 0
	}
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothingAlpha
	}

	sorted := make([]models.MetricSample, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ewma := math.Max(sorted[0].Value, 0)
	for _, s := range sorted[1:] {
		ewma = alpha*math.Max(s.Value, 0) + (1-alpha)*ewma
	}
	return ewma
}

func startDay(history []models.MetricSample, start, now time.Time, loc *time.Location) (time.Time, bool) {
	if start.IsZero() {
		switch {
		case len(history) > 0:
			start = newest(history).AddDate(0, 0, 1)
		case !now.IsZero():
			start = now
		default:
			return time.Time{}, false
		}
	}
	start = start.In(loc)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc), true
}

func newest(history []models.MetricSample) time.Time {
	var t time.Time
	for _, s := range history {
		if s.Timestamp.After(t) {
			t = s.Timestamp
		}
	}
	return t
}

// Recommendations derives advisory output from a projection run.
func Recommendations(days []models.DailyProjection, currentCapacity int) []models.Recommendation {
	if len(days) == 0 {
		return nil
	}

	var (
		totalRecommended int
		saturdays        int
		utilizationSum   float64
		peak             models.DailyProjection
	)
	for _, d := range days {
		totalRecommended += d.RecommendedCapacity
		utilizationSum += d.UtilizationRate
		if d.IsSaturday {
			saturdays++
		}
		if d.RecommendedCapacity > peak.RecommendedCapacity {
			peak = d
		}
	}

	var recs []models.Recommendation
	if totalRecommended > currentCapacity*len(days) {
		recs = append(recs, models.Recommendation{
			Type: models.RecommendScaleUp,
			Message: fmt.Sprintf("Projected demand needs up to %d instances (peak on %s), current capacity is %d",
				peak.RecommendedCapacity, peak.Date.Format("2006-01-02"), currentCapacity),
		})
	}
	if saturdays > 0 {
		recs = append(recs, models.Recommendation{
			Type:    models.RecommendSchedule,
			Message: fmt.Sprintf("Schedule pre-scaling ahead of %d Saturday wedding peak(s) in the horizon", saturdays),
		})
	}
	if avg := utilizationSum / float64(len(days)); avg > optimizeThreshold {
		recs = append(recs, models.Recommendation{
			Type:    models.RecommendOptimize,
			Message: fmt.Sprintf("Average projected utilization is %.1f%%, review instance sizing and caching", avg),
		})
	}
	return recs
}

// Report runs a projection for one service and bundles the derived output.
func Report(ctx context.Context, service string, history []models.MetricSample, horizonDays int, model SeasonalModel, now time.Time) (models.ProjectionReport, error) {
	if model.Now.IsZero() {
		model.Now = now
	}
	days, err := ProjectContext(ctx, history, horizonDays, model)
	if err != nil {
		return models.ProjectionReport{}, fmt.Errorf("failed to project %s: %w", service, err)
	}

	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.EstimatedCost)
	}

	return models.ProjectionReport{
		Service:         service,
		GeneratedAt:     now,
		HorizonDays:     horizonDays,
		CurrentCapacity: model.CurrentCapacity,
		Days:            days,
		Recommendations: Recommendations(days, model.CurrentCapacity),
		TotalCost:       total,
	}, nil
}
