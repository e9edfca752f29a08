package orchestrator

import (
	"context"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/capacity"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Project builds a capacity report for every registered service. History
// comes from the sample database when configured, else from memory.
func (o *Orchestrator) Project(ctx context.Context) ([]models.ProjectionReport, error) {
	now := o.clock.Now()
	pc := o.cfg.Projection

	services := o.registry.List()
	reports := make([]models.ProjectionReport, 0, len(services))
	for _, svc := range services {
		history := o.projectionHistory(ctx, svc.Name, now)
		model := capacity.SeasonalModel{
			Season:               o.cfg.Season,
			UnitsPerInstance:     pc.UnitsPerInstance,
			PerInstanceDailyCost: pc.PerInstanceDailyCost,
			CurrentCapacity:      svc.CurrentInstances,
			SmoothingAlpha:       pc.SmoothingAlpha,
			Location:             pc.Location,
		}

		report, err := capacity.Report(ctx, svc.Name, history, pc.HorizonDays, model, now)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (o *Orchestrator) projectionHistory(ctx context.Context, service string, now time.Time) []models.MetricSample {
	metric := o.cfg.Projection.Metric
	if o.persist.Samples == nil {
		return o.store.History(service, metric)
	}

	history, err := o.persist.Samples.GetRange(ctx, service, metric, now.Add(-o.cfg.Projection.Lookback), now)
	if err != nil || len(history) == 0 {
		if err != nil {
			logger.WithService(service).WithError(err).Warn("Falling back to in-memory history for projection")
		}
		return o.store.History(service, metric)
	}
	return history
}

// StartProjections schedules periodic projections with a cron expression.
func (o *Orchestrator) StartProjections(schedule string) error {
	return o.projections.Start(schedule)
}

// RequestProjection runs a projection now, cancelling any run in flight.
func (o *Orchestrator) RequestProjection(ctx context.Context) ([]models.ProjectionReport, error) {
	return o.projections.Request(ctx)
}

// LatestProjections returns the most recent successful run and its time.
func (o *Orchestrator) LatestProjections() ([]models.ProjectionReport, time.Time) {
	return o.projections.Latest()
}
