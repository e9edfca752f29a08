package models

import "time"

// InstanceState is a snapshot of a service's instance counts.
type InstanceState struct {
	CurrentInstances int `json:"current_instances"`
	TargetInstances  int `json:"target_instances"`
	MinInstances     int `json:"min_instances"`
	MaxInstances     int `json:"max_instances"`
}

func StateOf(s ServiceInstance) InstanceState {
	return InstanceState{
		CurrentInstances: s.CurrentInstances,
		TargetInstances:  s.TargetInstances,
		MinInstances:     s.MinInstances,
		MaxInstances:     s.MaxInstances,
	}
}

// ScalingEvent is the immutable audit record of an executed scaling action
type ScalingEvent struct {
	ID             string          `json:"id"`
	Type           DecisionType    `json:"type"`
	Service        string          `json:"service"`
	Reason         string          `json:"reason"`
	Timestamp      time.Time       `json:"timestamp"`
	BeforeState    InstanceState   `json:"before_state"`
	AfterState     InstanceState   `json:"after_state"`
	Duration       time.Duration   `json:"duration"`
	Success        bool            `json:"success"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	TriggeredBy    string          `json:"triggered_by"`
	WeddingContext *WeddingContext `json:"wedding_context,omitempty"`
}

// NewScalingEvent builds the audit record for a decision. The caller fills
// in the outcome fields.
func NewScalingEvent(decision ScalingDecision, before ServiceInstance) *ScalingEvent {
	triggeredBy := decision.PolicyID
	if triggeredBy == "" {
		triggeredBy = string(decision.Type)
	}
	return &ScalingEvent{
		ID:             NewUUID(),
		Type:           decision.Type,
		Service:        decision.Service,
		Reason:         decision.Reason,
		Timestamp:      decision.Timestamp,
		BeforeState:    StateOf(before),
		TriggeredBy:    triggeredBy,
		WeddingContext: decision.WeddingContext,
	}
}

func (e *ScalingEvent) Fail(err error) {
	e.Success = false
	if err != nil {
		e.ErrorMessage = err.Error()
	}
}
