package websocket

import (
	"context"
	"encoding/json"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// EventBridge forwards engine events to dashboard clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (b *EventBridge) Start() {
	go b.run()
	logger.Info("WebSocket event bridge started")
}

func (b *EventBridge) Stop() {
	b.cancel()
	<-b.done
	logger.Info("WebSocket event bridge stopped")
}

func (b *EventBridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forwardEvent(event)
		}
	}
}

func (b *EventBridge) forwardEvent(event *models.Event) {
	msg := convertEvent(event)
	if msg == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}
	b.hub.BroadcastToService(event.Service, data)
}

func convertEvent(event *models.Event) *OutgoingMessage {
	msgType := mapEventType(event.Type)
	if msgType == "" {
		return nil
	}

	return &OutgoingMessage{
		Type:      msgType,
		Event:     string(event.Type),
		Service:   event.Service,
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		Data:      event.Data,
	}
}

// mapEventType returns "" for events dashboards do not receive.
func mapEventType(eventType models.EventType) MessageType {
	switch eventType {
	case models.EventTypeAlertCreated, models.EventTypeAlertAcknowledged,
		models.EventTypeAlertEscalated, models.EventTypeAlertResolved:
		return MessageTypeAlert
	case models.EventTypeDecisionMade:
		return MessageTypeDecision
	case models.EventTypeScalingStarted:
		return MessageTypeScalingStarted
	case models.EventTypeScalingComplete:
		return MessageTypeScalingEvent
	case models.EventTypeScalingFailed:
		return MessageTypeScalingFailed
	case models.EventTypeProjection:
		return MessageTypeProjection
	case models.EventTypeConfigRejected:
		return MessageTypeConfig
	case models.EventTypeError:
		return MessageTypeError
	default:
		return ""
	}
}
