package handlers

import (
	"context"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// The handler dependencies are split by route group so tests can stub only
// the part they exercise. *orchestrator.Orchestrator satisfies all of them.

type AlertService interface {
	ListAlerts(filter alert.Filter) []models.ScalingAlert
	GetAlert(id string) (models.ScalingAlert, error)
	AcknowledgeAlert(id, actor string, expectedVersion uint64) (models.ScalingAlert, bool, error)
	EscalateAlert(id string, recipients []string, expectedVersion uint64) (models.ScalingAlert, bool, error)
	ResolveAlert(id string, expectedVersion uint64) (models.ScalingAlert, bool, error)
}

type PolicyService interface {
	Policies() []models.ScalingPolicy
	Policy(id string) (models.ScalingPolicy, bool)
	UpsertPolicy(ctx context.Context, p models.ScalingPolicy) (models.ScalingPolicy, error)
	TogglePolicy(ctx context.Context, id string, enabled bool) (models.ScalingPolicy, error)
	DeletePolicy(ctx context.Context, id string) error
	Thresholds() []models.AlertThreshold
	UpsertThreshold(ctx context.Context, t models.AlertThreshold) (models.AlertThreshold, error)
	ReloadRules(path string) error
}

type ServiceDirectory interface {
	Services() []models.ServiceInstance
	Service(name string) (models.ServiceInstance, bool)
	RegisterService(svc models.ServiceInstance) (models.ServiceInstance, error)
	History(service string, metric models.MetricKind) []models.MetricSample
	ManualOverride(service string, target int, actor string) (models.ScalingDecision, bool, error)
}

type EventSource interface {
	RecentEvents(service string, limit int) []models.ScalingEvent
}

type ProjectionService interface {
	LatestProjections() ([]models.ProjectionReport, time.Time)
	RequestProjection(ctx context.Context) ([]models.ProjectionReport, error)
}

type SampleSink interface {
	Ingest(sample models.MetricSample) (models.AlertMutation, error)
}

type StatusSource interface {
	Services() []models.ServiceInstance
	PendingScaling() int
	ListAlerts(filter alert.Filter) []models.ScalingAlert
}
