package events

import (
	"context"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type ScalingEventStore interface {
	Insert(ctx context.Context, event *models.ScalingEvent) error
}

type AlertStore interface {
	Upsert(ctx context.Context, alert *models.ScalingAlert) error
}

// EventLogger writes every bus event to the structured log and persists
// scaling events and alert changes when stores are configured.
type EventLogger struct {
	scalingEvents ScalingEventStore
	alerts        AlertStore
	eventChan     <-chan *models.Event
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewEventLogger accepts nil stores; the corresponding events are then only
// logged.
func NewEventLogger(eventChan <-chan *models.Event, scalingEvents ScalingEventStore, alerts AlertStore) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		scalingEvents: scalingEvents,
		alerts:        alerts,
		eventChan:     eventChan,
		timeout:       5 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	go l.run()
}

// Stop returns once the logger goroutine has exited.
func (l *EventLogger) Stop() {
	l.cancel()
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"service":    event.Service,
		"severity":   event.Severity,
		"trace_id":   event.TraceID,
	})

	switch event.Severity {
	case models.EventSeverityCritical:
		entry.Error(event.Message)
	case models.EventSeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Debug(event.Message)
	}

	switch event.Type {
	case models.EventTypeScalingComplete, models.EventTypeScalingFailed:
		l.persistScalingEvent(event)
	case models.EventTypeAlertCreated, models.EventTypeAlertAcknowledged,
		models.EventTypeAlertEscalated, models.EventTypeAlertResolved:
		l.persistAlert(event)
	}
}

func (l *EventLogger) persistScalingEvent(event *models.Event) {
	if l.scalingEvents == nil {
		return
	}
	scalingEvent, ok := event.Data.(models.ScalingEvent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()
	if err := l.scalingEvents.Insert(ctx, &scalingEvent); err != nil {
		logger.WithService(scalingEvent.Service).WithError(err).Error("Failed to persist scaling event")
	}
}

func (l *EventLogger) persistAlert(event *models.Event) {
	if l.alerts == nil {
		return
	}
	alert, ok := event.Data.(models.ScalingAlert)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()
	if err := l.alerts.Upsert(ctx, &alert); err != nil {
		logger.WithAlert(alert.Service, alert.ID).WithError(err).Error("Failed to persist alert")
	}
}

