package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/internal/wedding"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

func flatHistory(value float64, n int, end time.Time) []models.MetricSample {
	out := make([]models.MetricSample, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, models.MetricSample{
			Service:   "web",
			Metric:    models.MetricRequests,
			Value:     value,
			Timestamp: end.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestProject_Multipliers(t *testing.T) {
	model := SeasonalModel{
		Season:               wedding.DefaultSeason,
		PerInstanceDailyCost: decimal.RequireFromString("12.50"),
		CurrentCapacity:      10,
	}

	tests := []struct {
		name       string
		start      time.Time
		multiplier float64
		demand     float64
		capacity   int
	}{
		// 2026-01-14 is a Wednesday, 2026-01-17 a Saturday.
		{"off-season weekday", time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), 1.0, 10, 12},
		{"off-season saturday", time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), 2.0, 20, 24},
		// 2026-06-10 is a Wednesday, 2026-06-13 a Saturday.
		{"season weekday", time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), 1.5, 15, 18},
		{"season saturday", time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC), 3.0, 30, 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model
			m.Start = tt.start
			days := Project(flatHistory(10, 24, tt.start.Add(-time.Hour)), 1, m)
			require.Len(t, days, 1)

			d := days[0]
			assert.InDelta(t, tt.multiplier, d.SeasonalMultiplier, 1e-9)
			assert.InDelta(t, tt.demand, d.ProjectedDemand, 1e-9)
			assert.Equal(t, tt.capacity, d.RecommendedCapacity)
			assert.True(t, decimal.NewFromFloat(12.5).Mul(decimal.NewFromInt(int64(tt.capacity))).Equal(d.EstimatedCost))
			assert.InDelta(t, tt.demand/10*100, d.UtilizationRate, 1e-9)
		})
	}
}

func TestProject_RecommendedCapacityCoversDemand(t *testing.T) {
	history := make([]models.MetricSample, 0, 200)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		history = append(history, models.MetricSample{
			Service:   "web",
			Metric:    models.MetricRequests,
			Value:     float64((i*37)%113) + 0.37,
			Timestamp: base.Add(time.Duration(i) * 17 * time.Minute),
		})
	}

	for _, units := range []float64{0, 1, 7.5, 250} {
		days := Project(history, 90, SeasonalModel{Season: wedding.DefaultSeason, UnitsPerInstance: units, CurrentCapacity: 3})
		require.Len(t, days, 90)
		for _, d := range days {
			assert.GreaterOrEqual(t, float64(d.RecommendedCapacity), d.ProjectedDemand, d.Date.String())
		}
	}
}

func TestProject_EmptyInputs(t *testing.T) {
	assert.Empty(t, Project(flatHistory(10, 3, time.Now()), 0, SeasonalModel{}))

	now := time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC)
	days := Project(nil, 3, SeasonalModel{CurrentCapacity: 0, Now: now})
	require.Len(t, days, 3)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), days[0].Date)
	for _, d := range days {
		assert.Zero(t, d.ProjectedDemand)
		assert.Zero(t, d.RecommendedCapacity)
		assert.Zero(t, d.UtilizationRate)
	}

	assert.Empty(t, Project(nil, 3, SeasonalModel{}))
}

func TestReport_EmptyHistoryStartsOnReportDay(t *testing.T) {
	now := time.Date(2026, 6, 12, 23, 30, 0, 0, time.UTC)
	report, err := Report(context.Background(), "web", nil, 2, SeasonalModel{Season: wedding.DefaultSeason}, now)
	require.NoError(t, err)
	require.Len(t, report.Days, 2)
	assert.Equal(t, time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC), report.Days[0].Date)
	assert.True(t, report.Days[1].IsSaturday)
	assert.Equal(t, now, report.GeneratedAt)
}

func TestProject_Location(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	// 03:00 UTC on Saturday is still Friday evening in Los Angeles.
	now := time.Date(2026, 6, 13, 3, 0, 0, 0, time.UTC)
	days := Project(nil, 1, SeasonalModel{Now: now, Location: la})
	require.Len(t, days, 1)
	assert.Equal(t, time.Friday, days[0].Date.Weekday())
	assert.False(t, days[0].IsSaturday)
}

func TestScheduler_Location(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	s := NewScheduler(func(context.Context) ([]models.ProjectionReport, error) { return nil, nil }, WithLocation(la))
	assert.Equal(t, la, s.Location())

	s = NewScheduler(func(context.Context) ([]models.ProjectionReport, error) { return nil, nil }, WithLocation(nil))
	assert.Equal(t, time.Local, s.Location())
}

func TestProject_UnitsPerInstance(t *testing.T) {
	start := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	days := Project(flatHistory(5000, 10, start.Add(-time.Hour)), 1, SeasonalModel{Start: start, UnitsPerInstance: 500})
	require.Len(t, days, 1)
	assert.InDelta(t, 10, days[0].ProjectedDemand, 1e-9)
}

func TestProject_DefaultStartIsDayAfterNewestSample(t *testing.T) {
	end := time.Date(2026, 2, 3, 15, 30, 0, 0, time.UTC)
	days := Project(flatHistory(1, 5, end), 2, SeasonalModel{})
	require.Len(t, days, 2)
	assert.Equal(t, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), days[0].Date)
	assert.Equal(t, time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), days[1].Date)
}

func TestBaseline(t *testing.T) {
	now := time.Now()
	samples := []models.MetricSample{
		{Value: 20, Timestamp: now.Add(time.Minute)},
		{Value: 10, Timestamp: now},
	}
	// sorted: 10, then 0.5*20 + 0.5*10
	assert.InDelta(t, 15, Baseline(samples, 0.5), 1e-9)
	assert.InDelta(t, 13, Baseline(samples, 0), 1e-9)
	assert.Zero(t, Baseline(nil, 0.3))
	assert.Zero(t, Baseline([]models.MetricSample{{Value: -4}}, 0.3))
}

func TestProjectContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProjectContext(ctx, flatHistory(10, 3, time.Now()), 30, SeasonalModel{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendations(t *testing.T) {
	sat := models.DailyProjection{RecommendedCapacity: 24, UtilizationRate: 200, IsSaturday: true}
	weekday := models.DailyProjection{RecommendedCapacity: 6, UtilizationRate: 50}

	tests := []struct {
		name     string
		days     []models.DailyProjection
		capacity int
		want     []models.RecommendationType
	}{
		{"quiet weekdays", []models.DailyProjection{weekday, weekday}, 10, nil},
		{"saturday peak", []models.DailyProjection{weekday, sat}, 10, []models.RecommendationType{
			models.RecommendScaleUp, models.RecommendSchedule, models.RecommendOptimize,
		}},
		{"saturday within capacity", []models.DailyProjection{weekday, sat}, 20, []models.RecommendationType{
			models.RecommendSchedule, models.RecommendOptimize,
		}},
		{"no days", nil, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []models.RecommendationType
			for _, r := range Recommendations(tt.days, tt.capacity) {
				got = append(got, r.Type)
				assert.NotEmpty(t, r.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReport_TotalsCost(t *testing.T) {
	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	model := SeasonalModel{Start: start, PerInstanceDailyCost: decimal.NewFromInt(2), CurrentCapacity: 5}
	report, err := Report(context.Background(), "web", flatHistory(10, 4, start.Add(-time.Hour)), 7, model, start)
	require.NoError(t, err)

	assert.Equal(t, "web", report.Service)
	assert.Len(t, report.Days, 7)
	sum := 0
	for _, d := range report.Days {
		sum += d.RecommendedCapacity
	}
	assert.True(t, decimal.NewFromInt(int64(sum*2)).Equal(report.TotalCost))
}

func TestScheduler_RequestSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	s := NewScheduler(func(ctx context.Context) ([]models.ProjectionReport, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []models.ProjectionReport{{Service: "web"}}, nil
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background())
		firstErr <- err
	}()
	<-started

	reports, err := s.Request(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first projection was not cancelled")
	}

	latest, at := s.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "web", latest[0].Service)
	assert.False(t, at.IsZero())
}

func TestScheduler_FailedRunKeepsPreviousResult(t *testing.T) {
	fail := false
	var completed int
	s := NewScheduler(func(ctx context.Context) ([]models.ProjectionReport, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return []models.ProjectionReport{{Service: "web"}}, nil
	}, OnComplete(func([]models.ProjectionReport) { completed++ }))

	_, err := s.Request(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = s.Request(context.Background())
	assert.Error(t, err)

	latest, _ := s.Latest()
	assert.Len(t, latest, 1)
	assert.Equal(t, 1, completed)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(func(ctx context.Context) ([]models.ProjectionReport, error) { return nil, nil })
	assert.Error(t, s.Start("not a schedule"))
}
