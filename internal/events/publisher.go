package events

import (
	"fmt"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Publisher turns engine callbacks into bus events. It satisfies the alert
// manager's publisher and the dispatcher's listener.
type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:     p.bus,
		traceID: traceID,
	}
}

func (p *Publisher) publish(event *models.Event) {
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) PublishAlert(eventType models.EventType, alert models.ScalingAlert) {
	var msg string
	switch eventType {
	case models.EventTypeAlertCreated:
		msg = alert.Title
	case models.EventTypeAlertAcknowledged:
		msg = fmt.Sprintf("Alert acknowledged by %s: %s", alert.AcknowledgedBy, alert.Title)
	case models.EventTypeAlertEscalated:
		msg = fmt.Sprintf("Alert escalated: %s", alert.Title)
	case models.EventTypeAlertResolved:
		msg = fmt.Sprintf("Alert resolved: %s", alert.Title)
	default:
		msg = alert.Title
	}

	event := models.NewEvent(eventType, alert.Service, msg).
		WithSeverity(models.EventSeverityFor(alert.Level)).
		WithData(alert)
	if eventType == models.EventTypeAlertResolved || eventType == models.EventTypeAlertAcknowledged {
		event.WithSeverity(models.EventSeverityInfo)
	}
	p.publish(event)
}

func (p *Publisher) AlertSuppressed(sample models.MetricSample, existingID string) {
	event := models.NewEvent(models.EventTypeAlertSuppressed, sample.Service, "Duplicate breach absorbed by open alert").
		WithData(map[string]interface{}{
			"alert_id": existingID,
			"metric":   sample.Metric,
			"value":    sample.Value,
		})
	p.publish(event)
}

func (p *Publisher) DecisionMade(decision models.ScalingDecision) {
	msg := fmt.Sprintf("Scaling decision: %s %d -> %d", decision.Type, decision.FromInstances, decision.ToInstances)
	event := models.NewEvent(models.EventTypeDecisionMade, decision.Service, msg).
		WithData(decision)

	if decision.Type == models.DecisionEmergencyScale {
		event.WithSeverity(models.EventSeverityCritical)
	}

	p.publish(event)
}

func (p *Publisher) DecisionSkipped(service, policyID, reason, detail string) {
	event := models.NewEvent(models.EventTypeDecisionSkipped, service, "Policy skipped: "+reason).
		WithData(map[string]interface{}{
			"policy_id": policyID,
			"reason":    reason,
			"detail":    detail,
		})
	p.publish(event)
}

func (p *Publisher) ScalingStarted(decision models.ScalingDecision) {
	msg := "Scaling started: " + string(decision.Type)
	event := models.NewEvent(models.EventTypeScalingStarted, decision.Service, msg).
		WithData(decision)
	p.publish(event)
}

// ScalingFinished publishes a complete or failed event depending on outcome.
func (p *Publisher) ScalingFinished(scalingEvent models.ScalingEvent) {
	if scalingEvent.Success {
		msg := "Scaling complete: " + string(scalingEvent.Type)
		p.publish(models.NewEvent(models.EventTypeScalingComplete, scalingEvent.Service, msg).
			WithData(scalingEvent))
		return
	}

	msg := "Scaling failed: " + scalingEvent.ErrorMessage
	p.publish(models.NewEvent(models.EventTypeScalingFailed, scalingEvent.Service, msg).
		WithSeverity(models.EventSeverityCritical).
		WithData(scalingEvent))
}

func (p *Publisher) ProjectionComplete(reports []models.ProjectionReport) {
	event := models.NewEvent(models.EventTypeProjection, "", fmt.Sprintf("Capacity projection complete for %d services", len(reports))).
		WithData(reports)
	p.publish(event)
}

func (p *Publisher) ConfigRejected(source string, err error) {
	event := models.NewEvent(models.EventTypeConfigRejected, "", "Configuration rejected: "+source).
		WithSeverity(models.EventSeverityWarning).
		WithData(map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	p.publish(event)
}

func (p *Publisher) Error(service string, message string, err error) {
	event := models.NewEvent(models.EventTypeError, service, message).
		WithSeverity(models.EventSeverityCritical).
		WithData(map[string]interface{}{
			"error": err.Error(),
		})
	p.publish(event)
}
