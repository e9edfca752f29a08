// Package alert turns threshold breaches into deduplicated alert records
// and tracks their acknowledge, escalate and resolve lifecycle.
package alert

import (
	"fmt"
	"strings"

	"github.com/OldStager01/wedding-autoscaler/internal/threshold"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Ingest decides what a new sample means for the alert set. It creates an
// alert only when the sample breaches a threshold and no unresolved alert
// exists for the same (service, metric) pair; an open alert is never
// replaced, even by a higher severity.
func Ingest(sample models.MetricSample, thresholds []models.AlertThreshold, openAlerts []models.ScalingAlert) models.AlertMutation {
	t, ok := threshold.Select(sample, thresholds)
	if !ok {
		return models.AlertMutation{Kind: models.MutationNoOp}
	}
	level := threshold.Level(sample.Value, t)
	if level == models.SeverityNone {
		return models.AlertMutation{Kind: models.MutationNoOp}
	}

	if existing := FindOpen(openAlerts, sample.Service, sample.Metric); existing != nil {
		return models.AlertMutation{
			Kind:       models.MutationNoOp,
			Suppressed: true,
			ExistingID: existing.ID,
		}
	}

	alert := newAlert(sample, t, level)
	return models.AlertMutation{Kind: models.MutationCreateAlert, Alert: &alert}
}

// FindOpen returns the unresolved alert raised for the pair, if any.
func FindOpen(alerts []models.ScalingAlert, service string, metric models.MetricKind) *models.ScalingAlert {
	for i := range alerts {
		a := &alerts[i]
		if !a.Resolved && a.Service == service && a.HasMetric(metric) {
			return a
		}
	}
	return nil
}

func newAlert(sample models.MetricSample, t models.AlertThreshold, level models.Severity) models.ScalingAlert {
	return models.ScalingAlert{
		ID:        models.NewUUID(),
		Level:     level,
		Service:   sample.Service,
		Title:     fmt.Sprintf("%s %s alert on %s", titleCase(level.String()), sample.Metric, sample.Service),
		Message:   fmt.Sprintf("%s at %.2f reached the %s threshold of %.2f on %s", sample.Metric, sample.Value, level, levelValue(t, level), sample.Service),
		Timestamp: sample.Timestamp,
		Metadata: models.AlertMetadata{
			CurrentMetrics:   map[string]float64{string(sample.Metric): sample.Value},
			Thresholds:       t,
			SuggestedActions: SuggestedActions(level, sample.Service, sample.Metric),
		},
		Version: 1,
	}
}

// SuggestedActions is a fixed lookup: emergencies get two urgent lines ahead
// of the three baseline actions every alert carries.
func SuggestedActions(level models.Severity, service string, metric models.MetricKind) []string {
	baseline := []string{
		fmt.Sprintf("Monitor %s %s closely over the next 15 minutes", service, metric),
		fmt.Sprintf("Check %s logs for errors and slow requests", service),
		fmt.Sprintf("Verify auto-scaling policies for %s are enabled and not in cooldown", service),
	}
	if level != models.SeverityEmergency {
		return baseline
	}
	return append([]string{
		fmt.Sprintf("IMMEDIATE ACTION REQUIRED: %s %s is at emergency level", service, metric),
		"Escalate to on-call engineering and wedding-day support staff",
	}, baseline...)
}

func levelValue(t models.AlertThreshold, level models.Severity) float64 {
	switch level {
	case models.SeverityEmergency:
		return t.Emergency
	case models.SeverityCritical:
		return t.Critical
	default:
		return t.Warning
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
