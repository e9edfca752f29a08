package models

import "time"

type EventType string

const (
	EventTypeSampleIngested    EventType = "sample_ingested"
	EventTypeAlertCreated      EventType = "alert_created"
	EventTypeAlertAcknowledged EventType = "alert_acknowledged"
	EventTypeAlertEscalated    EventType = "alert_escalated"
	EventTypeAlertResolved     EventType = "alert_resolved"
	EventTypeAlertSuppressed   EventType = "alert_suppressed"
	EventTypeDecisionMade      EventType = "decision_made"
	EventTypeDecisionSkipped   EventType = "decision_skipped"
	EventTypeScalingStarted    EventType = "scaling_started"
	EventTypeScalingComplete   EventType = "scaling_complete"
	EventTypeScalingFailed     EventType = "scaling_failed"
	EventTypeProjection        EventType = "projection_complete"
	EventTypeConfigRejected    EventType = "config_rejected"
	EventTypeError             EventType = "error"
)

// AllEventTypes lists every type a SubscribeAll channel receives.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeSampleIngested,
		EventTypeAlertCreated,
		EventTypeAlertAcknowledged,
		EventTypeAlertEscalated,
		EventTypeAlertResolved,
		EventTypeAlertSuppressed,
		EventTypeDecisionMade,
		EventTypeDecisionSkipped,
		EventTypeScalingStarted,
		EventTypeScalingComplete,
		EventTypeScalingFailed,
		EventTypeProjection,
		EventTypeConfigRejected,
		EventTypeError,
	}
}

type EventSeverity string

const (
	EventSeverityInfo     EventSeverity = "info"
	EventSeverityWarning  EventSeverity = "warning"
	EventSeverityCritical EventSeverity = "critical"
)

// EventSeverityFor maps an alert level onto the event bus severity scale.
func EventSeverityFor(level Severity) EventSeverity {
	switch {
	case level >= SeverityCritical:
		return EventSeverityCritical
	case level == SeverityWarning:
		return EventSeverityWarning
	default:
		return EventSeverityInfo
	}
}

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	Service   string        `json:"service,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, service, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  EventSeverityInfo,
		Service:   service,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}
