package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/internal/store"
	"github.com/OldStager01/wedding-autoscaler/internal/wedding"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// 2026-06-10 is a Wednesday, 2026-06-13 a Saturday.
var (
	wednesday = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	saturday  = time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)
)

type fakeServices map[string]*models.ServiceInstance

func (f fakeServices) Service(name string) (models.ServiceInstance, bool) {
	s, ok := f[name]
	if !ok {
		return models.ServiceInstance{}, false
	}
	return *s, true
}

// apply mimics the dispatcher: it moves the instance count and marks the
// scaling time.
func (f fakeServices) apply(d models.ScalingDecision) {
	s := f[d.Service]
	s.CurrentInstances = s.Clamp(d.ToInstances)
	ts := d.Timestamp
	s.LastScalingEvent = &ts
}

func webService(current, max int) fakeServices {
	return fakeServices{"web": {Name: "web", CurrentInstances: current, MinInstances: 2, MaxInstances: max}}
}

func requestsPolicy() models.ScalingPolicy {
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

// feed appends one sample every 10s over [start, start+span].
func feed(s *store.Store, service string, metric models.MetricKind, start time.Time, span time.Duration, value func(i int) float64) time.Time {
	var last time.Time
	for i := 0; time.Duration(i)*10*time.Second <= span; i++ {
		last = start.Add(time.Duration(i) * 10 * time.Second)
		s.Append(models.MetricSample{Service: service, Metric: metric, Value: value(i), Timestamp: last})
	}
	return last
}

func constant(v float64) func(int) float64 { return func(int) float64 { return v } }

func newEngine(services ServiceSource) *Engine {
	return NewEngine(services, wedding.NewResolver(wedding.DefaultSeason))
}

func TestEvaluate_RequestsScenarioRespectsCooldown(t *testing.T) {
	samples := store.New(1000, 4)
	services := webService(4, 40)
	engine := newEngine(services)
	calendar := wedding.NewCalendar(nil)
	policies := []models.ScalingPolicy{requestsPolicy()}

	now := feed(samples, "web", models.MetricRequests, wednesday, 300*time.Second, constant(5200))
	decisions := engine.Evaluate(policies, samples, now, calendar)
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionScaleUp, decisions[0].Type)
	assert.Equal(t, 4, decisions[0].FromInstances)
	assert.Equal(t, 9, decisions[0].ToInstances)
	assert.Nil(t, decisions[0].WeddingContext)
	services.apply(decisions[0])

	now = feed(samples, "web", models.MetricRequests, now.Add(10*time.Second), 290*time.Second, constant(5200))
	result := engine.EvaluateDetailed(policies, samples, now, calendar)
	assert.Empty(t, result.Decisions)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipCooldown, result.Skipped[0].Reason)

	// Once the cooldown has elapsed the policy may fire again.
	now = feed(samples, "web", models.MetricRequests, now.Add(10*time.Second), 300*time.Second, constant(5200))
	decisions = engine.Evaluate(policies, samples, now, calendar)
	require.Len(t, decisions, 1)
	assert.Equal(t, 9, decisions[0].FromInstances)
}

func TestEvaluate_TriggerNeedsSustainedCondition(t *testing.T) {
	tests := []struct {
		name  string
		value func(i int) float64
		span  time.Duration
		fired bool
	}{
		{"every sample above", constant(6000), 300 * time.Second, true},
		{"aggregate above but one dip", func(i int) float64 {
			if i == 15 {
				return 100
			}
			return 9000
		}, 300 * time.Second, false},
		{"history shorter than duration", constant(6000), 200 * time.Second, false},
		{"aggregate below", constant(4000), 300 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := store.New(1000, 1)
			now := feed(samples, "web", models.MetricRequests, wednesday, tt.span, tt.value)
			decisions := newEngine(webService(4, 40)).Evaluate([]models.ScalingPolicy{requestsPolicy()}, samples, now, wedding.NewCalendar(nil))
			if tt.fired {
				assert.Len(t, decisions, 1)
			} else {
				assert.Empty(t, decisions)
			}
		})
	}
}

func TestEvaluate_SaturdayPeakMultiplier(t *testing.T) {
	p := requestsPolicy()
	p.WeddingAwareRules = []models.WeddingAwareRule{{
		Name:            "saturday-peak",
		Condition:       models.RuleSaturdayPeak,
		ScalingModifier: models.Modifier{CapacityMultiplier: 2.5},
		Enabled:         true,
	}}

	tests := []struct {
		name string
		max  int
		want int
	}{
		{"multiplied and floored", 40, 4 + 12},
		{"clamped to max", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := store.New(1000, 1)
			now := feed(samples, "web", models.MetricRequests, saturday, 300*time.Second, constant(5200))

			decisions := newEngine(webService(4, tt.max)).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
			require.Len(t, decisions, 1)
			assert.Equal(t, tt.want, decisions[0].ToInstances)
			require.NotNil(t, decisions[0].WeddingContext)
			assert.Equal(t, []string{"saturday-peak"}, decisions[0].WeddingContext.ActiveRules)
		})
	}
}

func TestEvaluate_DisabledPoliciesIgnored(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricRequests, wednesday, 300*time.Second, constant(9000))

	p := requestsPolicy()
	p.Enabled = false
	result := newEngine(webService(4, 40)).EvaluateDetailed([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	assert.Empty(t, result.Decisions)
	assert.Empty(t, result.Skipped)
}

func TestEvaluate_MissingMetricFailsClosed(t *testing.T) {
	samples := store.New(1000, 1)
	result := newEngine(webService(4, 40)).EvaluateDetailed([]models.ScalingPolicy{requestsPolicy()}, samples, wednesday, wedding.NewCalendar(nil))
	assert.Empty(t, result.Decisions)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipMissingMetric, result.Skipped[0].Reason)
}

func TestEvaluate_AnyTriggerFires(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricCPU, wednesday, 60*time.Second, constant(97))

	p := requestsPolicy()
	p.Triggers = append(p.Triggers, models.ScalingTrigger{
		Metric: models.MetricCPU, Condition: models.ConditionGTE, Threshold: 90,
		Aggregation: models.AggregationMax, WindowSizeSeconds: 60,
	})

	decisions := newEngine(webService(4, 40)).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	require.Len(t, decisions, 1)
	assert.Contains(t, decisions[0].Reason, "cpu max")
}

func TestEvaluate_ConflictResolution(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricRequests, saturday, 300*time.Second, constant(5200))

	high := requestsPolicy()
	high.ID = "a-high"
	high.Priority = 6

	boosted := requestsPolicy()
	boosted.ID = "b-boosted"
	boosted.Priority = 5
	boosted.Actions = []models.ScalingAction{{Type: models.DecisionScaleUp, Adjustment: 1}}
	boosted.WeddingAwareRules = []models.WeddingAwareRule{{
		Name:            "peak",
		Condition:       models.RuleSaturdayPeak,
		ScalingModifier: models.Modifier{CapacityMultiplier: 1, PriorityBoost: 3},
		Enabled:         true,
	}}

	tie := requestsPolicy()
	tie.ID = "c-tie"
	tie.Priority = 6

	result := newEngine(webService(4, 40)).EvaluateDetailed([]models.ScalingPolicy{tie, high, boosted}, samples, now, wedding.NewCalendar(nil))
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "b-boosted", result.Decisions[0].PolicyID)
	assert.Equal(t, 8, result.Decisions[0].EffectivePriority)

	require.Len(t, result.Skipped, 2)
	for _, s := range result.Skipped {
		assert.Equal(t, SkipConflict, s.Reason)
	}

	// Without the boost the tie goes to the lower policy id.
	result = newEngine(webService(4, 40)).EvaluateDetailed([]models.ScalingPolicy{tie, high}, samples, now, wedding.NewCalendar(nil))
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "a-high", result.Decisions[0].PolicyID)
}

func TestEvaluate_EmergencyBypassesCooldown(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricCPU, wednesday, 60*time.Second, constant(98))

	services := webService(4, 40)
	recent := now.Add(-10 * time.Second)
	services["web"].LastScalingEvent = &recent

	p := models.ScalingPolicy{
		ID:      "web-cpu-emergency",
		Service: "web",
		Triggers: []models.ScalingTrigger{{
			Metric: models.MetricCPU, Condition: models.ConditionGTE, Threshold: 95,
			DurationSeconds: 60, Aggregation: models.AggregationMax, WindowSizeSeconds: 60,
		}},
		Actions:               []models.ScalingAction{{Type: models.DecisionEmergencyScale, Percent: 50}},
		CooldownPeriodSeconds: 600,
		Priority:              10,
		Enabled:               true,
	}

	decisions := newEngine(services).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionEmergencyScale, decisions[0].Type)
	assert.Equal(t, 6, decisions[0].ToInstances)
}

func TestEvaluate_CooldownReductionFromWeddingRule(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricRequests, saturday, 300*time.Second, constant(5200))

	services := webService(4, 40)
	last := now.Add(-400 * time.Second)
	services["web"].LastScalingEvent = &last

	p := requestsPolicy()
	result := newEngine(services).EvaluateDetailed([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	assert.Empty(t, result.Decisions)

	p.WeddingAwareRules = []models.WeddingAwareRule{{
		Name:            "peak",
		Condition:       models.RuleSaturdayPeak,
		ScalingModifier: models.Modifier{CapacityMultiplier: 1, CooldownReduction: 0.5},
		Enabled:         true,
	}}
	decisions := newEngine(services).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	assert.Len(t, decisions, 1)
}

func TestEvaluate_ClampProperty(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricCPU, wednesday, 60*time.Second, constant(50))

	actions := []models.ScalingAction{
		{Type: models.DecisionScaleUp, Adjustment: 100},
		{Type: models.DecisionScaleDown, Adjustment: 100},
		{Type: models.DecisionEmergencyScale, Percent: 400},
	}
	for current := 2; current <= 10; current++ {
		for _, action := range actions {
			p := models.ScalingPolicy{
				ID: "p", Service: "web", Enabled: true,
				Triggers: []models.ScalingTrigger{{Metric: models.MetricCPU, Condition: models.ConditionGTE, Threshold: 0, Aggregation: models.AggregationAvg, WindowSizeSeconds: 60}},
				Actions:  []models.ScalingAction{action},
			}
			for _, d := range newEngine(webService(current, 10)).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil)) {
				assert.GreaterOrEqual(t, d.ToInstances, 2)
				assert.LessOrEqual(t, d.ToInstances, 10)
				assert.NotEqual(t, d.FromInstances, d.ToInstances)
			}
		}
	}
}

func TestEvaluate_NoOpFallsThroughToNextAction(t *testing.T) {
	samples := store.New(1000, 1)
	now := feed(samples, "web", models.MetricCPU, wednesday, 60*time.Second, constant(10))

	p := models.ScalingPolicy{
		ID: "p", Service: "web", Enabled: true,
		Triggers: []models.ScalingTrigger{{Metric: models.MetricCPU, Condition: models.ConditionLTE, Threshold: 20, Aggregation: models.AggregationAvg, WindowSizeSeconds: 60}},
		Actions: []models.ScalingAction{
			{Type: models.DecisionScaleUp, Adjustment: 1},
			{Type: models.DecisionScaleDown, Adjustment: 1},
		},
	}

	decisions := newEngine(webService(10, 10)).Evaluate([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionScaleDown, decisions[0].Type)
	assert.Equal(t, 9, decisions[0].ToInstances)

	result := newEngine(webService(2, 2)).EvaluateDetailed([]models.ScalingPolicy{p}, samples, now, wedding.NewCalendar(nil))
	assert.Empty(t, result.Decisions)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipNoOp, result.Skipped[0].Reason)
}

func TestScaledDelta(t *testing.T) {
	tests := []struct {
		name       string
		action     models.ScalingAction
		current    int
		multiplier float64
		want       int
	}{
		{"plain", models.ScalingAction{Type: models.DecisionScaleUp, Adjustment: 5}, 4, 1, 5},
		{"floored", models.ScalingAction{Type: models.DecisionScaleUp, Adjustment: 5}, 4, 2.5, 12},
		{"scale down negative", models.ScalingAction{Type: models.DecisionScaleDown, Adjustment: 2}, 4, 1.5, -3},
		{"small multiplier keeps one", models.ScalingAction{Type: models.DecisionScaleUp, Adjustment: 1}, 4, 0.2, 1},
		{"unset multiplier is neutral", models.ScalingAction{Type: models.DecisionScaleUp, Adjustment: 3}, 4, 0, 3},
		{"percent rounds up", models.ScalingAction{Type: models.DecisionEmergencyScale, Percent: 50}, 5, 1, 3},
		{"empty action", models.ScalingAction{Type: models.DecisionScaleUp}, 4, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScaledDelta(tt.action, tt.current, tt.multiplier))
		})
	}
}

func TestAggregate(t *testing.T) {
	samples := []models.MetricSample{{Value: 3}, {Value: 9}, {Value: 6}}
	assert.Equal(t, 6.0, Aggregate(samples, models.AggregationAvg))
	assert.Equal(t, 9.0, Aggregate(samples, models.AggregationMax))
	assert.Equal(t, 3.0, Aggregate(samples, models.AggregationMin))
	assert.Equal(t, 0.0, Aggregate(nil, models.AggregationAvg))
}
