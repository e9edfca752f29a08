package models

import "time"

type DecisionType string

const (
	DecisionScaleUp        DecisionType = "scale_up"
	DecisionScaleDown      DecisionType = "scale_down"
	DecisionManualOverride DecisionType = "manual_override"
	DecisionEmergencyScale DecisionType = "emergency_scale"
)

func (t DecisionType) Valid() bool {
	switch t {
	case DecisionScaleUp, DecisionScaleDown, DecisionManualOverride, DecisionEmergencyScale:
		return true
	}
	return false
}

// BypassesCooldown reports whether decisions of this type ignore the cooldown window.
func (t DecisionType) BypassesCooldown() bool {
	return t == DecisionEmergencyScale || t == DecisionManualOverride
}

// WeddingContext records which wedding-aware rules shaped a decision.
type WeddingContext struct {
	ActiveRules []string `json:"active_rules"`
	Modifier    Modifier `json:"modifier"`
}

// ScalingDecision represents a scaling decision made by the policy engine
type ScalingDecision struct {
	ID                string          `json:"id"`
	PolicyID          string          `json:"policy_id,omitempty"`
	Service           string          `json:"service"`
	Type              DecisionType    `json:"type"`
	FromInstances     int             `json:"from_instances"`
	ToInstances       int             `json:"to_instances"`
	Reason            string          `json:"reason"`
	Timestamp         time.Time       `json:"timestamp"`
	EffectivePriority int             `json:"effective_priority"`
	WeddingContext    *WeddingContext `json:"wedding_context,omitempty"`
}

func (d *ScalingDecision) Delta() int {
	return d.ToInstances - d.FromInstances
}

func (d *ScalingDecision) IsNoOp() bool {
	return d.ToInstances == d.FromInstances
}
