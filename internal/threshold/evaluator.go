// Package threshold maps a metric sample onto a breach severity.
package threshold

import "github.com/OldStager01/wedding-autoscaler/pkg/models"

// Select returns the enabled threshold that governs the sample's
// (service, metric) pair. A service-named entry wins over the "all" wildcard.
func Select(sample models.MetricSample, thresholds []models.AlertThreshold) (models.AlertThreshold, bool) {
	var (
		wildcard    models.AlertThreshold
		hasWildcard bool
	)
	for _, t := range thresholds {
		if !t.Enabled || !t.Matches(sample.Service, sample.Metric) {
			continue
		}
		if !t.IsWildcard() {
			return t, true
		}
		if !hasWildcard {
			wildcard, hasWildcard = t, true
		}
	}
	return wildcard, hasWildcard
}

// Level compares value against the threshold's levels, highest first.
func Level(value float64, t models.AlertThreshold) models.Severity {
	switch {
	case value >= t.Emergency:
		return models.SeverityEmergency
	case value >= t.Critical:
		return models.SeverityCritical
	case value >= t.Warning:
		return models.SeverityWarning
	default:
		return models.SeverityNone
	}
}

// Evaluate returns the breached severity for the sample, or false when no
// threshold applies or the value is below every level.
func Evaluate(sample models.MetricSample, thresholds []models.AlertThreshold) (models.Severity, bool) {
	t, ok := Select(sample, thresholds)
	if !ok {
		return models.SeverityNone, false
	}
	level := Level(sample.Value, t)
	return level, level != models.SeverityNone
}
