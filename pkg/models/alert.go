package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is an ordered breach level. Comparisons use the numeric order,
// so Warning < Critical < Emergency.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return "none"
	}
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	case "emergency":
		return SeverityEmergency, nil
	case "none", "":
		return SeverityNone, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AlertThreshold is externally configured and read-only to the engine.
type AlertThreshold struct {
	Service   string     `json:"service" yaml:"service"`
	Metric    MetricKind `json:"metric" yaml:"metric"`
	Warning   float64    `json:"warning" yaml:"warning"`
	Critical  float64    `json:"critical" yaml:"critical"`
	Emergency float64    `json:"emergency" yaml:"emergency"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
}

func (t AlertThreshold) IsWildcard() bool {
	return t.Service == WildcardService
}

// Matches reports whether the threshold applies to the given series.
func (t AlertThreshold) Matches(service string, metric MetricKind) bool {
	return t.Metric == metric && (t.Service == service || t.IsWildcard())
}

// AlertMetadata carries the breach context. CurrentMetrics is keyed by metric
// name and doubles as the (service, metric) dedup signature.
type AlertMetadata struct {
	CurrentMetrics   map[string]float64 `json:"current_metrics"`
	Thresholds       AlertThreshold     `json:"thresholds"`
	SuggestedActions []string           `json:"suggested_actions"`
}

// ScalingAlert is created once per open (service, metric) breach and mutated
// in place through acknowledge, escalate and resolve.
type ScalingAlert struct {
	ID             string        `json:"id"`
	Level          Severity      `json:"level"`
	Service        string        `json:"service"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	Timestamp      time.Time     `json:"timestamp"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedBy string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	Escalated      bool          `json:"escalated"`
	EscalatedTo    []string      `json:"escalated_to,omitempty"`
	Resolved       bool          `json:"resolved"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	Metadata       AlertMetadata `json:"metadata"`
	Version        uint64        `json:"version"`
}

// HasMetric reports whether the alert was raised for the given metric.
func (a *ScalingAlert) HasMetric(metric MetricKind) bool {
	_, ok := a.Metadata.CurrentMetrics[string(metric)]
	return ok
}

func (a *ScalingAlert) IsOpen() bool {
	return !a.Resolved
}

// Clone returns a deep copy safe to hand out of a lock.
func (a *ScalingAlert) Clone() ScalingAlert {
	c := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	if a.EscalatedTo != nil {
		c.EscalatedTo = append([]string(nil), a.EscalatedTo...)
	}
	c.Metadata.CurrentMetrics = make(map[string]float64, len(a.Metadata.CurrentMetrics))
	for k, v := range a.Metadata.CurrentMetrics {
		c.Metadata.CurrentMetrics[k] = v
	}
	c.Metadata.SuggestedActions = append([]string(nil), a.Metadata.SuggestedActions...)
	return c
}

type AlertMutationKind string

const (
	MutationNoOp        AlertMutationKind = "noop"
	MutationCreateAlert AlertMutationKind = "create_alert"
)

// AlertMutation is the result of ingesting a sample into the alert manager.
type AlertMutation struct {
	Kind       AlertMutationKind `json:"kind"`
	Alert      *ScalingAlert     `json:"alert,omitempty"`
	Suppressed bool              `json:"suppressed"`
	ExistingID string            `json:"existing_id,omitempty"`
}

func (m AlertMutation) IsCreate() bool {
	return m.Kind == MutationCreateAlert
}
