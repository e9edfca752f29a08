package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

func validPolicy() models.ScalingPolicy {
	return models.ScalingPolicy{
		ID:      "web-requests",
		Service: "web",
		Triggers: []models.ScalingTrigger{{
			Metric:            models.MetricRequests,
			Condition:         models.ConditionGTE,
			Threshold:         5000,
			DurationSeconds:   300,
			Aggregation:       models.AggregationAvg,
			WindowSizeSeconds: 300,
		}},
		Actions:               []models.ScalingAction{{Type: models.DecisionScaleUp, Adjustment: 5}},
		CooldownPeriodSeconds: 600,
		Priority:              5,
		Enabled:               true,
	}
}

func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold models.AlertThreshold
		wantErr   bool
	}{
		{"ordered", models.AlertThreshold{Service: "web", Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95}, false},
		{"wildcard", models.AlertThreshold{Service: "all", Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95}, false},
		{"equal levels", models.AlertThreshold{Service: "web", Metric: models.MetricCPU, Warning: 80, Critical: 80, Emergency: 80}, false},
		{"warning above critical", models.AlertThreshold{Service: "web", Metric: models.MetricCPU, Warning: 90, Critical: 85, Emergency: 95}, true},
		{"critical above emergency", models.AlertThreshold{Service: "web", Metric: models.MetricCPU, Warning: 70, Critical: 99, Emergency: 95}, true},
		{"missing metric", models.AlertThreshold{Service: "web", Warning: 70, Critical: 85, Emergency: 95}, true},
		{"empty service", models.AlertThreshold{Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThreshold(tt.threshold)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfigError(err))
				assert.True(t, errors.Is(err, ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(validPolicy()))

	tests := []struct {
		name   string
		mutate func(p *models.ScalingPolicy)
		field  string
	}{
		{"priority too high", func(p *models.ScalingPolicy) { p.Priority = 11 }, "priority"},
		{"no triggers", func(p *models.ScalingPolicy) { p.Triggers = nil }, "triggers"},
		{"bad condition", func(p *models.ScalingPolicy) { p.Triggers[0].Condition = ">" }, "triggers[0].condition"},
		{"bad aggregation", func(p *models.ScalingPolicy) { p.Triggers[0].Aggregation = "p99" }, "triggers[0].aggregation"},
		{"zero window", func(p *models.ScalingPolicy) { p.Triggers[0].WindowSizeSeconds = 0 }, "triggers[0].window_size_seconds"},
		{"manual action", func(p *models.ScalingPolicy) { p.Actions[0].Type = models.DecisionManualOverride }, "actions[0].type"},
		{"empty action", func(p *models.ScalingPolicy) { p.Actions[0].Adjustment = 0 }, "actions[0]"},
		{"reduction above one", func(p *models.ScalingPolicy) {
			p.WeddingAwareRules = []models.WeddingAwareRule{{
				Name:            "peak",
				Condition:       models.RuleSaturdayPeak,
				ScalingModifier: models.Modifier{CapacityMultiplier: 2, CooldownReduction: 1.5},
			}}
		}, "wedding_aware_rules[0].scaling_modifier.cooldown_reduction"},
		{"bad time window", func(p *models.ScalingPolicy) {
			p.WeddingAwareRules = []models.WeddingAwareRule{{
				Name:       "peak",
				Condition:  models.RuleSaturdayPeak,
				Parameters: models.RuleParameters{TimeWindowStart: "25:00", TimeWindowEnd: "23:00"},
			}}
		}, "wedding_aware_rules[0].parameters.time_window_start"},
		{"event without target", func(p *models.ScalingPolicy) {
			p.WeddingAwareRules = []models.WeddingAwareRule{{Name: "gala", Condition: models.RuleSpecificEvent}}
		}, "wedding_aware_rules[0].parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(&p)
			err := ValidatePolicy(p)
			require.Error(t, err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateRule_TimeWindow(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"business hours", "09:00", "17:00", false},
		{"whole day", "00:00", "24:00", false},
		{"wraps midnight", "22:00", "02:00", false},
		{"past end of day", "00:00", "24:30", true},
		{"hour out of range", "25:00", "23:00", true},
		{"missing end", "09:00", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := models.WeddingAwareRule{
				Name:            "peak",
				Condition:       models.RuleSaturdayPeak,
				Parameters:      models.RuleParameters{TimeWindowStart: tt.start, TimeWindowEnd: tt.end},
				ScalingModifier: models.Modifier{CapacityMultiplier: 2},
			}
			err := ValidateRule("rule", rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateService(t *testing.T) {
	ok := models.ServiceInstance{Name: "web", CurrentInstances: 3, MinInstances: 2, MaxInstances: 20}
	assert.NoError(t, ValidateService(ok))

	outside := ok
	outside.CurrentInstances = 30
	assert.Error(t, ValidateService(outside))

	inverted := ok
	inverted.MaxInstances = 1
	assert.Error(t, ValidateService(inverted))

	reserved := ok
	reserved.Name = "all"
	assert.Error(t, ValidateService(reserved))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "web", SanitizeString("  w\x00eb\x07 "))
}
