package models_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

func TestSeverity_ParseAndOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Severity
		wantErr bool
	}{
		{"warning", models.SeverityWarning, false},
		{" Critical ", models.SeverityCritical, false},
		{"EMERGENCY", models.SeverityEmergency, false},
		{"", models.SeverityNone, false},
		{"fatal", models.SeverityNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := models.ParseSeverity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, models.SeverityWarning < models.SeverityCritical)
	assert.True(t, models.SeverityCritical < models.SeverityEmergency)
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Level models.Severity `json:"level"`
	}{models.SeverityCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"critical"}`, string(data))

	var decoded struct {
		Level models.Severity `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level":"emergency"}`), &decoded))
	assert.Equal(t, models.SeverityEmergency, decoded.Level)
	assert.Error(t, json.Unmarshal([]byte(`{"level":"loud"}`), &decoded))
}

func TestAlertThreshold_Matches(t *testing.T) {
	specific := models.AlertThreshold{Service: "web", Metric: models.MetricCPU}
	wildcard := models.AlertThreshold{Service: models.WildcardService, Metric: models.MetricCPU}

	assert.True(t, specific.Matches("web", models.MetricCPU))
	assert.False(t, specific.Matches("api", models.MetricCPU))
	assert.False(t, specific.Matches("web", models.MetricMemory))
	assert.True(t, wildcard.Matches("api", models.MetricCPU))
	assert.True(t, wildcard.IsWildcard())
}

func TestCondition_Holds(t *testing.T) {
	tests := []struct {
		cond      models.Condition
		value     float64
		threshold float64
		want      bool
	}{
		{models.ConditionGTE, 80, 80, true},
		{models.ConditionGTE, 79.9, 80, false},
		{models.ConditionLTE, 20, 30, true},
		{models.ConditionLTE, 31, 30, false},
		{models.ConditionEQ, 5, 5, true},
		{models.Condition(">"), 90, 80, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cond.Holds(tt.value, tt.threshold), "%v %s %v", tt.value, tt.cond, tt.threshold)
	}
}

func TestServiceInstance_Bounds(t *testing.T) {
	svc := models.ServiceInstance{Name: "web", CurrentInstances: 5, MinInstances: 2, MaxInstances: 10}

	assert.Equal(t, 2, svc.Clamp(0))
	assert.Equal(t, 10, svc.Clamp(25))
	assert.Equal(t, 7, svc.Clamp(7))
	assert.True(t, svc.CanScaleUp())
	assert.True(t, svc.CanScaleDown())

	svc.CurrentInstances = 10
	assert.False(t, svc.CanScaleUp())

	now := time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)
	_, ok := svc.SinceLastScaling(now)
	assert.False(t, ok)

	last := now.Add(-90 * time.Second)
	svc.LastScalingEvent = &last
	elapsed, ok := svc.SinceLastScaling(now)
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, elapsed)
}

func TestDecisionType_BypassesCooldown(t *testing.T) {
	assert.True(t, models.DecisionEmergencyScale.BypassesCooldown())
	assert.True(t, models.DecisionManualOverride.BypassesCooldown())
	assert.False(t, models.DecisionScaleUp.BypassesCooldown())
	assert.False(t, models.DecisionType("pause").Valid())
}

func TestScalingAlert_CloneIsDeep(t *testing.T) {
	at := time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)
	orig := models.ScalingAlert{
		ID:             "a1",
		EscalatedTo:    []string{"oncall"},
		AcknowledgedAt: &at,
		Metadata: models.AlertMetadata{
			CurrentMetrics:   map[string]float64{"cpu": 91},
			SuggestedActions: []string{"scale up"},
		},
	}

	c := orig.Clone()
	c.EscalatedTo[0] = "changed"
	c.Metadata.CurrentMetrics["cpu"] = 10
	*c.AcknowledgedAt = at.Add(time.Hour)

	assert.Equal(t, "oncall", orig.EscalatedTo[0])
	assert.Equal(t, 91.0, orig.Metadata.CurrentMetrics["cpu"])
	assert.Equal(t, at, *orig.AcknowledgedAt)
	assert.True(t, orig.HasMetric(models.MetricCPU))
	assert.True(t, orig.IsOpen())
}

func TestNewScalingEvent(t *testing.T) {
	decision := models.ScalingDecision{
		Service:       "web",
		Type:          models.DecisionManualOverride,
		FromInstances: 3,
		ToInstances:   6,
	}
	before := models.ServiceInstance{Name: "web", CurrentInstances: 3, MinInstances: 1, MaxInstances: 10}

	event := models.NewScalingEvent(decision, before)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "manual_override", event.TriggeredBy)
	assert.Equal(t, 3, event.BeforeState.CurrentInstances)
	assert.Equal(t, 3, decision.Delta())

	event.Fail(errors.New("provider unavailable"))
	assert.False(t, event.Success)
	assert.Equal(t, "provider unavailable", event.ErrorMessage)
}
