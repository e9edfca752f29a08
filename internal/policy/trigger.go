package policy

import (
	"fmt"
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// MissingMetricError means a trigger's window held no samples. The trigger is
// treated as not fired.
type MissingMetricError struct {
	Service string
	Metric  models.MetricKind
	Window  time.Duration
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("no %s samples for service %s in the last %s", e.Metric, e.Service, e.Window)
}

// SampleReader is the read side of the sample store the engine needs.
type SampleReader interface {
	Window(service string, metric models.MetricKind, from, to time.Time) []models.MetricSample
	Oldest(service string, metric models.MetricKind) (models.MetricSample, bool)
}

// TriggerResult describes one trigger evaluation.
type TriggerResult struct {
	Trigger    models.ScalingTrigger
	Aggregated float64
	Fired      bool
}

func (r TriggerResult) String() string {
	t := r.Trigger
	return fmt.Sprintf("%s %s over %ds = %.2f %s %.2f",
		t.Metric, t.Aggregation, t.WindowSizeSeconds, r.Aggregated, t.Condition, t.Threshold)
}

// EvaluateTrigger aggregates the trailing window and, when the aggregate
// satisfies the condition, requires every sample in the trailing duration to
// satisfy it as well. The retained history must reach back to the start of
// the duration; shorter histories fail closed.
func EvaluateTrigger(service string, t models.ScalingTrigger, samples SampleReader, now time.Time) (TriggerResult, error) {
	result := TriggerResult{Trigger: t}

	window := samples.Window(service, t.Metric, now.Add(-t.Window()), now)
	if len(window) == 0 {
		return result, &MissingMetricError{Service: service, Metric: t.Metric, Window: t.Window()}
	}

	result.Aggregated = Aggregate(window, t.Aggregation)
	if !t.Condition.Holds(result.Aggregated, t.Threshold) {
		return result, nil
	}

	if t.DurationSeconds > 0 {
		since := now.Add(-t.Duration())
		oldest, ok := samples.Oldest(service, t.Metric)
		if !ok || oldest.Timestamp.After(since) {
			return result, nil
		}
		held := samples.Window(service, t.Metric, since, now)
		if len(held) == 0 {
			return result, nil
		}
		for _, s := range held {
			if !t.Condition.Holds(s.Value, t.Threshold) {
				return result, nil
			}
		}
	}

	result.Fired = true
	return result, nil
}

// Aggregate reduces samples with the given aggregation. Unknown aggregations
// fall back to the average.
func Aggregate(samples []models.MetricSample, agg models.Aggregation) float64 {
	if len(samples) == 0 {
		return 0
	}
	switch agg {
	case models.AggregationMax:
		v := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value > v {
				v = s.Value
			}
		}
		return v
	case models.AggregationMin:
		v := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value < v {
				v = s.Value
			}
		}
		return v
	default:
		var sum float64
		for _, s := range samples {
			sum += s.Value
		}
		return sum / float64(len(samples))
	}
}
