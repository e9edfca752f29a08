package orchestrator

import (
	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// The alert operations below pass expectedVersion through to the manager;
// zero applies the change unconditionally.

func (o *Orchestrator) AcknowledgeAlert(id, actor string, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	return o.alerts.Acknowledge(id, actor, o.clock.Now(), expectedVersion)
}

func (o *Orchestrator) EscalateAlert(id string, recipients []string, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	return o.alerts.Escalate(id, recipients, expectedVersion)
}

func (o *Orchestrator) ResolveAlert(id string, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	a, changed, err := o.alerts.Resolve(id, o.clock.Now(), expectedVersion)
	if changed {
		metrics.Get().SetOpenAlerts(o.alerts.OpenCount())
	}
	return a, changed, err
}

func (o *Orchestrator) ListAlerts(filter alert.Filter) []models.ScalingAlert {
	return o.alerts.List(filter)
}

func (o *Orchestrator) GetAlert(id string) (models.ScalingAlert, error) {
	return o.alerts.Get(id)
}

// RestoreAlerts loads open alerts persisted by a previous run.
func (o *Orchestrator) RestoreAlerts(alerts []models.ScalingAlert) int {
	n := o.alerts.Restore(alerts)
	metrics.Get().SetOpenAlerts(o.alerts.OpenCount())
	return n
}
