package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageTypeAlert          MessageType = "alert"
	MessageTypeDecision       MessageType = "decision"
	MessageTypeScalingStarted MessageType = "scaling_started"
	MessageTypeScalingEvent   MessageType = "scaling_event"
	MessageTypeScalingFailed  MessageType = "scaling_failed"
	MessageTypeProjection     MessageType = "projection"
	MessageTypeConfig         MessageType = "config_rejected"
	MessageTypeError          MessageType = "error"
	MessageTypeSubscription   MessageType = "subscription_update"
)

// OutgoingMessage is the envelope for everything pushed to dashboards.
type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	Service   string      `json:"service,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, service string, data interface{}) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		Service:   service,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func (m *OutgoingMessage) JSON() []byte {
	data, _ := json.Marshal(m)
	return data
}

type SubscriptionData struct {
	Action string `json:"action"`
}
