package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/scaler"
	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
	"github.com/OldStager01/wedding-autoscaler/pkg/validation"
)

// 2026-06-10 is a Wednesday.
var wednesday = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *scaler.SimulatorEffector) {
	t.Helper()
	effector := scaler.NewSimulatorEffector(scaler.SimulatorConfig{})
	o := New(Config{
		HistorySize: 200,
		StoreShards: 4,
		LockStripes: 8,
		Dispatcher:  scaler.DispatcherConfig{CallTimeout: time.Second},
		Projection: ProjectionConfig{
			HorizonDays:          7,
			Metric:               models.MetricRequests,
			UnitsPerInstance:     1000,
			PerInstanceDailyCost: decimal.NewFromInt(24),
		},
	}, effector, opts...)
	require.NoError(t, o.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		o.Stop(ctx)
	})

	_, err := o.RegisterService(models.ServiceInstance{Name: "web", CurrentInstances: 4, MinInstances: 2, MaxInstances: 40})
	require.NoError(t, err)
	return o, effector
}

func requestsPolicy() models.ScalingPolicy {
	return models.ScalingPolicy{
		ID:      "web-requests",
		Name:    "Web request surge",
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

// feedRequests ingests one sample every 10s over [start, start+span] and
// returns the last timestamp.
func feedRequests(t *testing.T, o *Orchestrator, start time.Time, span time.Duration, value float64) time.Time {
	t.Helper()
	var last time.Time
	for i := 0; time.Duration(i)*10*time.Second <= span; i++ {
		last = start.Add(time.Duration(i) * 10 * time.Second)
		_, err := o.Ingest(models.MetricSample{Service: "web", Metric: models.MetricRequests, Value: value, Timestamp: last})
		require.NoError(t, err)
	}
	return last
}

func waitFor(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestConfigFrom_Timezones(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	tests := []struct {
		name         string
		modify       func(*config.Config)
		wantCalendar *time.Location
		wantPeak     [2]int
		wantSchedule *time.Location
		wantErr      string
	}{
		{
			name:         "defaults",
			modify:       func(c *config.Config) {},
			wantCalendar: time.UTC,
			wantPeak:     [2]int{8, 23},
			wantSchedule: time.UTC,
		},
		{
			name: "local calendar and schedule",
			modify: func(c *config.Config) {
				c.Engine.Timezone = "America/Los_Angeles"
				c.Engine.PeakStartHour = 18
				c.Engine.PeakEndHour = 22
				c.Projector.Timezone = "Europe/London"
			},
			wantCalendar: la,
			wantPeak:     [2]int{18, 22},
			wantSchedule: london,
		},
		{
			name:    "unknown calendar zone",
			modify:  func(c *config.Config) { c.Engine.Timezone = "Mars/Olympus" },
			wantErr: "engine.timezone",
		},
		{
			name:    "unknown projector zone",
			modify:  func(c *config.Config) { c.Projector.Timezone = "Nowhere" },
			wantErr: "projector.timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load("")
			require.NoError(t, err)
			tt.modify(cfg)

			oc, err := ConfigFrom(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			o := New(oc, scaler.NewSimulatorEffector(scaler.SimulatorConfig{}))
			assert.Equal(t, tt.wantCalendar, o.Calendar().Location())
			start, end := o.Calendar().PeakHours()
			assert.Equal(t, tt.wantPeak, [2]int{start, end})
			assert.Equal(t, tt.wantSchedule, o.projections.Location())
		})
	}
}

func TestStripedLock_SameKeySameMutex(t *testing.T) {
	l := NewStripedLock(16)
	assert.Same(t, l.GetLock("web"), l.GetLock("web"))

	single := NewStripedLock(1)
	assert.Same(t, single.GetLock("web"), single.GetLock("booking-api"))
}

func TestIngest_CreatesAlertAndRefreshesService(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.UpsertThreshold(context.Background(), models.AlertThreshold{
		Service: models.WildcardService, Metric: models.MetricCPU,
		Warning: 70, Critical: 85, Emergency: 95, Enabled: true,
	})
	require.NoError(t, err)

	sample := models.MetricSample{Service: "web", Metric: models.MetricCPU, Value: 90, Timestamp: wednesday}
	mutation, err := o.Ingest(sample)
	require.NoError(t, err)
	require.True(t, mutation.IsCreate())
	assert.Equal(t, models.SeverityCritical, mutation.Alert.Level)

	svc, ok := o.Service("web")
	require.True(t, ok)
	assert.Equal(t, 90.0, svc.CPUUtilization)

	// A second breach is absorbed by the open alert.
	mutation, err = o.Ingest(models.MetricSample{Service: "web", Metric: models.MetricCPU, Value: 97, Timestamp: wednesday.Add(time.Second)})
	require.NoError(t, err)
	assert.True(t, mutation.Suppressed)
	assert.Len(t, o.ListAlerts(alert.FilterOpen), 1)
}

func TestIngest_RejectsStaleAndInvalidSamples(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Ingest(models.MetricSample{Service: "web", Metric: models.MetricCPU, Value: 10, Timestamp: wednesday})
	require.NoError(t, err)

	_, err = o.Ingest(models.MetricSample{Service: "web", Metric: models.MetricCPU, Value: 20, Timestamp: wednesday})
	assert.ErrorIs(t, err, ErrSampleDiscarded)

	_, err = o.Ingest(models.MetricSample{Metric: models.MetricCPU, Value: 20, Timestamp: wednesday})
	assert.ErrorIs(t, err, ingest.ErrInvalidSample)

	assert.Len(t, o.History("web", models.MetricCPU), 1)
}

func TestUpsertPolicy_RejectionKeepsLastKnownGood(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	rejected := o.SubscribeEvents(models.EventTypeConfigRejected)
	ctx := context.Background()

	_, err := o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)

	broken := requestsPolicy()
	broken.Triggers = nil
	broken.Priority = 3
	_, err = o.UpsertPolicy(ctx, broken)
	require.Error(t, err)
	assert.True(t, validation.IsConfigError(err))
	assert.Equal(t, models.EventTypeConfigRejected, waitFor(t, rejected).Type)

	current, ok := o.Policy("web-requests")
	require.True(t, ok)
	assert.Equal(t, 5, current.Priority)
	assert.Len(t, current.Triggers, 1)

	unknown := requestsPolicy()
	unknown.ID = "ghost"
	unknown.Service = "ghost-service"
	_, err = o.UpsertPolicy(ctx, unknown)
	assert.True(t, validation.IsConfigError(err))
	assert.Len(t, o.Policies(), 1)
}

func TestTogglePolicyAndDelete(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.TogglePolicy(ctx, "web-requests", false)
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	_, err = o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)

	p, err := o.TogglePolicy(ctx, "web-requests", false)
	require.NoError(t, err)
	assert.False(t, p.Enabled)

	require.NoError(t, o.DeletePolicy(ctx, "web-requests"))
	assert.ErrorIs(t, o.DeletePolicy(ctx, "web-requests"), ErrPolicyNotFound)
	assert.Empty(t, o.Policies())
}

func TestUpsertThreshold(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	good := models.AlertThreshold{Service: "web", Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95, Enabled: true}
	_, err := o.UpsertThreshold(ctx, good)
	require.NoError(t, err)

	bad := good
	bad.Warning = 90
	_, err = o.UpsertThreshold(ctx, bad)
	assert.True(t, validation.IsConfigError(err))

	good.Critical = 80
	_, err = o.UpsertThreshold(ctx, good)
	require.NoError(t, err)

	thresholds := o.Thresholds()
	require.Len(t, thresholds, 1)
	assert.Equal(t, 70.0, thresholds[0].Warning)
	assert.Equal(t, 80.0, thresholds[0].Critical)
}

func TestEvaluateOnce_DispatchesAndHonoursCooldown(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	completed := o.SubscribeEvents(models.EventTypeScalingComplete)
	ctx := context.Background()

	_, err := o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)

	now := feedRequests(t, o, wednesday, 300*time.Second, 5200)
	decisions := o.EvaluateOnce(ctx, now)
	require.Len(t, decisions, 1)
	assert.Equal(t, 4, decisions[0].FromInstances)
	assert.Equal(t, 9, decisions[0].ToInstances)

	event := waitFor(t, completed)
	scaling, ok := event.Data.(models.ScalingEvent)
	require.True(t, ok)
	assert.True(t, scaling.Success)
	assert.Equal(t, 9, scaling.AfterState.CurrentInstances)

	svc, _ := o.Service("web")
	assert.Equal(t, 9, svc.CurrentInstances)
	require.Len(t, o.RecentEvents("web", 10), 1)

	now = feedRequests(t, o, now.Add(10*time.Second), 60*time.Second, 5200)
	assert.Empty(t, o.EvaluateOnce(ctx, now))
}

func TestEvaluateOnce_FailedScalingKeepsCooldown(t *testing.T) {
	o, effector := newTestOrchestrator(t)
	failed := o.SubscribeEvents(models.EventTypeScalingFailed)
	ctx := context.Background()
	effector.FailService("web", nil)

	_, err := o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)

	now := feedRequests(t, o, wednesday, 300*time.Second, 5200)
	require.Len(t, o.EvaluateOnce(ctx, now), 1)

	event := waitFor(t, failed)
	scaling := event.Data.(models.ScalingEvent)
	assert.False(t, scaling.Success)
	assert.NotEmpty(t, scaling.ErrorMessage)

	svc, _ := o.Service("web")
	assert.Equal(t, 4, svc.CurrentInstances)

	now = feedRequests(t, o, now.Add(10*time.Second), 60*time.Second, 5200)
	assert.Empty(t, o.EvaluateOnce(ctx, now))
}

func TestEvaluateOnce_StopsWhenContextDone(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.UpsertPolicy(context.Background(), requestsPolicy())
	require.NoError(t, err)
	now := feedRequests(t, o, wednesday, 300*time.Second, 5200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, o.EvaluateOnce(ctx, now))
}

func TestManualOverride(t *testing.T) {
	tests := []struct {
		name       string
		service    string
		target     int
		wantTo     int
		dispatched bool
		wantErr    error
	}{
		{"clamped to max", "web", 100, 40, true, nil},
		{"clamped to min", "web", 0, 2, true, nil},
		{"no change", "web", 4, 4, false, nil},
		{"unknown service", "ghost", 5, 0, false, scaler.ErrServiceNotFound},
		{"negative target", "web", -1, 0, false, scaler.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOrchestrator(t)
			decision, dispatched, err := o.ManualOverride(tt.service, tt.target, "alice")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.DecisionManualOverride, decision.Type)
			assert.Equal(t, tt.wantTo, decision.ToInstances)
			assert.Equal(t, tt.dispatched, dispatched)
		})
	}
}

func TestManualOverride_BypassesCooldown(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	completed := o.SubscribeEvents(models.EventTypeScalingComplete)

	_, dispatched, err := o.ManualOverride("web", 10, "alice")
	require.NoError(t, err)
	require.True(t, dispatched)
	waitFor(t, completed)

	decision, dispatched, err := o.ManualOverride("web", 6, "alice")
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, 10, decision.FromInstances)
	waitFor(t, completed)

	svc, _ := o.Service("web")
	assert.Equal(t, 6, svc.CurrentInstances)
}

const validRules = `
services:
  - name: web
    current_instances: 4
    min_instances: 2
    max_instances: 40
  - name: booking-api
    current_instances: 3
    min_instances: 2
    max_instances: 25
thresholds:
  - service: all
    metric: cpu
    warning: 70
    critical: 85
    emergency: 95
    enabled: true
policies:
  - id: booking-cpu
    name: Booking CPU
    service: booking-api
    priority: 6
    enabled: true
    cooldown_period_seconds: 300
    triggers:
      - metric: cpu
        condition: ">="
        threshold: 80
        duration_seconds: 120
        aggregation: avg
        window_size_seconds: 120
    actions:
      - type: scale_up
        adjustment: 2
weddings:
  - id: w1
    name: Garden wedding
    date: 2026-06-13T15:00:00Z
`

const invalidRules = `
thresholds:
  - service: all
    metric: cpu
    warning: 90
    critical: 85
    emergency: 95
    enabled: true
`

func TestReloadRules_LastKnownGood(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(validRules), 0o644))
	require.NoError(t, o.ReloadRules(good))

	assert.Len(t, o.Services(), 2)
	assert.Len(t, o.Policies(), 1)
	assert.Len(t, o.Thresholds(), 1)
	assert.Len(t, o.Calendar().Events(), 1)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(invalidRules), 0o644))
	err := o.ReloadRules(bad)
	require.Error(t, err)
	assert.True(t, validation.IsConfigError(err))

	err = o.ReloadRules(filepath.Join(dir, "missing.yaml"))
	assert.True(t, validation.IsConfigError(err))

	assert.Len(t, o.Policies(), 1)
	assert.Equal(t, 70.0, o.Thresholds()[0].Warning)
}

func TestApplyStored_SkipsInvalidEntries(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	broken := requestsPolicy()
	broken.ID = "broken"
	broken.Actions = nil
	n := o.ApplyStored(
		[]models.ScalingPolicy{requestsPolicy(), broken},
		[]models.AlertThreshold{
			{Service: "web", Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95, Enabled: true},
			{Service: "web", Metric: models.MetricMemory, Warning: 99, Critical: 85, Emergency: 95, Enabled: true},
		},
	)
	assert.Equal(t, 2, n)
	assert.Len(t, o.Policies(), 1)
	assert.Len(t, o.Thresholds(), 1)
}

func TestReloadRules_KeepsAdminChanges(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRules), 0o644))
	require.NoError(t, o.ReloadRules(path))

	_, err := o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)
	_, err = o.UpsertThreshold(ctx, models.AlertThreshold{Service: "all", Metric: models.MetricCPU, Warning: 60, Critical: 85, Emergency: 95, Enabled: true})
	require.NoError(t, err)
	_, err = o.UpsertThreshold(ctx, models.AlertThreshold{Service: "web", Metric: models.MetricMemory, Warning: 70, Critical: 85, Emergency: 95, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, o.DeletePolicy(ctx, "booking-cpu"))

	require.NoError(t, o.ReloadRules(path))

	tests := []struct {
		name   string
		id     string
		exists bool
	}{
		{"admin policy survives reload", "web-requests", true},
		{"admin deletion survives reload", "booking-cpu", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := o.Policy(tt.id)
			assert.Equal(t, tt.exists, ok)
		})
	}

	thresholds := o.Thresholds()
	require.Len(t, thresholds, 2)
	assert.Equal(t, 60.0, thresholds[0].Warning)
	assert.Equal(t, models.MetricMemory, thresholds[1].Metric)

	restored := requestsPolicy()
	restored.ID = "booking-cpu"
	restored.Service = "booking-api"
	_, err = o.UpsertPolicy(ctx, restored)
	require.NoError(t, err)
	require.NoError(t, o.ReloadRules(path))
	p, ok := o.Policy("booking-cpu")
	require.True(t, ok)
	assert.Equal(t, models.MetricRequests, p.Triggers[0].Metric)
}

func TestRestoreCooldowns(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.UpsertPolicy(ctx, requestsPolicy())
	require.NoError(t, err)

	now := feedRequests(t, o, wednesday, 300*time.Second, 5200)
	n := o.RestoreCooldowns(map[string]time.Time{
		"web":   now.Add(-10 * time.Second),
		"ghost": now,
	})
	assert.Equal(t, 1, n)

	svc, _ := o.Service("web")
	require.NotNil(t, svc.LastScalingEvent)
	assert.Equal(t, now.Add(-10*time.Second), *svc.LastScalingEvent)
	assert.Empty(t, o.EvaluateOnce(ctx, now))

	later := feedRequests(t, o, now.Add(10*time.Second), 600*time.Second, 5200)
	assert.Len(t, o.EvaluateOnce(ctx, later), 1)
}

func TestAlertOperations(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.UpsertThreshold(context.Background(), models.AlertThreshold{
		Service: "web", Metric: models.MetricCPU, Warning: 70, Critical: 85, Emergency: 95, Enabled: true,
	})
	require.NoError(t, err)

	mutation, err := o.Ingest(models.MetricSample{Service: "web", Metric: models.MetricCPU, Value: 75, Timestamp: wednesday})
	require.NoError(t, err)
	id := mutation.Alert.ID

	a, changed, err := o.AcknowledgeAlert(id, "alice", mutation.Alert.Version)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "alice", a.AcknowledgedBy)

	_, _, err = o.EscalateAlert(id, []string{"oncall"}, mutation.Alert.Version)
	assert.ErrorIs(t, err, alert.ErrVersionConflict)

	_, _, err = o.ResolveAlert(id, 0)
	require.NoError(t, err)
	assert.Empty(t, o.ListAlerts(alert.FilterOpen))

	got, err := o.GetAlert(id)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
}

func TestRecentEvents_Bounded(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.cfg.RecentEventsLimit = 3

	for i := 0; i < 5; i++ {
		o.ScalingFinished(models.ScalingEvent{ID: string(rune('a' + i)), Service: "web", Success: true})
	}
	o.ScalingFinished(models.ScalingEvent{ID: "x", Service: "booking-api", Success: true})

	all := o.RecentEvents("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "x", all[0].ID)
	assert.Equal(t, "e", all[1].ID)

	web := o.RecentEvents("web", 1)
	require.Len(t, web, 1)
	assert.Equal(t, "e", web[0].ID)
}

func TestProject_ReportsEveryService(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	feedRequests(t, o, wednesday, 60*time.Second, 3000)

	reports, err := o.Project(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "web", reports[0].Service)
	assert.Len(t, reports[0].Days, 7)
	assert.True(t, reports[0].TotalCost.IsPositive())

	latest, err := o.RequestProjection(context.Background())
	require.NoError(t, err)
	assert.Len(t, latest, 1)
	cached, at := o.LatestProjections()
	assert.Len(t, cached, 1)
	assert.False(t, at.IsZero())
}

func TestRunner_EvaluatesOnEveryTick(t *testing.T) {
	clk := fakeclock.NewFakeClock(wednesday)
	o, _ := newTestOrchestrator(t, WithClock(clk))
	made := o.SubscribeEvents(models.EventTypeDecisionMade)

	_, err := o.UpsertPolicy(context.Background(), requestsPolicy())
	require.NoError(t, err)
	feedRequests(t, o, wednesday.Add(-300*time.Second), 300*time.Second, 5200)

	r := NewRunner(o, RunnerConfig{Interval: 10 * time.Second, Clock: clk})
	r.Start()
	defer r.Stop()
	assert.True(t, r.IsRunning())

	clk.WaitForWatcherAndIncrement(10 * time.Second)
	event := waitFor(t, made)
	decision := event.Data.(models.ScalingDecision)
	assert.Equal(t, "web-requests", decision.PolicyID)

	r.Stop()
	assert.False(t, r.IsRunning())
}
