package models

import "time"

type Condition string

const (
	ConditionGTE Condition = ">="
	ConditionLTE Condition = "<="
	ConditionEQ  Condition = "=="
)

// Holds reports whether value satisfies the condition against threshold.
func (c Condition) Holds(value, threshold float64) bool {
	switch c {
	case ConditionGTE:
		return value >= threshold
	case ConditionLTE:
		return value <= threshold
	case ConditionEQ:
		return value == threshold
	default:
		return false
	}
}

func (c Condition) Valid() bool {
	return c == ConditionGTE || c == ConditionLTE || c == ConditionEQ
}

type Aggregation string

const (
	AggregationAvg Aggregation = "avg"
	AggregationMax Aggregation = "max"
	AggregationMin Aggregation = "min"
)

func (a Aggregation) Valid() bool {
	return a == AggregationAvg || a == AggregationMax || a == AggregationMin
}

type ScalingTrigger struct {
	Metric            MetricKind  `json:"metric" yaml:"metric"`
	Condition         Condition   `json:"condition" yaml:"condition"`
	Threshold         float64     `json:"threshold" yaml:"threshold"`
	DurationSeconds   int         `json:"duration_seconds" yaml:"duration_seconds"`
	Aggregation       Aggregation `json:"aggregation" yaml:"aggregation"`
	WindowSizeSeconds int         `json:"window_size_seconds" yaml:"window_size_seconds"`
}

func (t ScalingTrigger) Window() time.Duration {
	return time.Duration(t.WindowSizeSeconds) * time.Second
}

func (t ScalingTrigger) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// ScalingAction describes how many instances a fired policy adds or removes.
// Percent, when set, is taken relative to the current instance count and
// overrides Adjustment.
type ScalingAction struct {
	Type       DecisionType `json:"type" yaml:"type"`
	Adjustment int          `json:"adjustment" yaml:"adjustment"`
	Percent    float64      `json:"percent,omitempty" yaml:"percent,omitempty"`
}

type RuleCondition string

const (
	RuleSaturdayPeak  RuleCondition = "saturday_peak"
	RuleWeddingSeason RuleCondition = "wedding_season"
	RuleSpecificEvent RuleCondition = "specific_event"
)

func (c RuleCondition) Valid() bool {
	return c == RuleSaturdayPeak || c == RuleWeddingSeason || c == RuleSpecificEvent
}

// RuleParameters holds the condition-specific knobs of a wedding-aware rule.
// Unused fields are ignored by conditions that do not need them.
//
// TimeWindowStart and TimeWindowEnd are "HH:MM" in Timezone. The start is
// inclusive and the end exclusive; use "24:00" as the end to cover the last
// minute of the day. Without a window, saturday_peak uses the calendar's
// peak hours, applied in Timezone when one is set.
type RuleParameters struct {
	DayOfWeek             *time.Weekday `json:"day_of_week,omitempty" yaml:"day_of_week,omitempty"`
	TimeWindowStart       string        `json:"time_window_start,omitempty" yaml:"time_window_start,omitempty"`
	TimeWindowEnd         string        `json:"time_window_end,omitempty" yaml:"time_window_end,omitempty"`
	Timezone              string        `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	HoursBeforeWedding    int           `json:"hours_before_wedding,omitempty" yaml:"hours_before_wedding,omitempty"`
	WeddingCountThreshold int           `json:"wedding_count_threshold,omitempty" yaml:"wedding_count_threshold,omitempty"`
	SeasonStartMonth      time.Month    `json:"season_start_month,omitempty" yaml:"season_start_month,omitempty"`
	SeasonEndMonth        time.Month    `json:"season_end_month,omitempty" yaml:"season_end_month,omitempty"`
	EventID               string        `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	EventName             string        `json:"event_name,omitempty" yaml:"event_name,omitempty"`
	LeadTimeHours         int           `json:"lead_time_hours,omitempty" yaml:"lead_time_hours,omitempty"`
}

type Modifier struct {
	CapacityMultiplier float64 `json:"capacity_multiplier" yaml:"capacity_multiplier"`
	PriorityBoost      int     `json:"priority_boost" yaml:"priority_boost"`
	CooldownReduction  float64 `json:"cooldown_reduction" yaml:"cooldown_reduction"`
}

// NeutralModifier leaves a decision unchanged.
func NeutralModifier() Modifier {
	return Modifier{CapacityMultiplier: 1}
}

type WeddingAwareRule struct {
	Name            string         `json:"name" yaml:"name"`
	Condition       RuleCondition  `json:"condition" yaml:"condition"`
	Parameters      RuleParameters `json:"parameters" yaml:"parameters"`
	ScalingModifier Modifier       `json:"scaling_modifier" yaml:"scaling_modifier"`
	Enabled         bool           `json:"enabled" yaml:"enabled"`
}

type PolicyPerformance struct {
	Accuracy                   float64 `json:"accuracy" yaml:"accuracy"`
	AverageResponseTimeSeconds float64 `json:"average_response_time_seconds" yaml:"average_response_time_seconds"`
	CostImpactPercent          float64 `json:"cost_impact_percent" yaml:"cost_impact_percent"`
}

type ScalingPolicy struct {
	ID                    string             `json:"id" yaml:"id"`
	Name                  string             `json:"name" yaml:"name"`
	Service               string             `json:"service" yaml:"service"`
	Triggers              []ScalingTrigger   `json:"triggers" yaml:"triggers"`
	Actions               []ScalingAction    `json:"actions" yaml:"actions"`
	WeddingAwareRules     []WeddingAwareRule `json:"wedding_aware_rules" yaml:"wedding_aware_rules"`
	CooldownPeriodSeconds int                `json:"cooldown_period_seconds" yaml:"cooldown_period_seconds"`
	Priority              int                `json:"priority" yaml:"priority"`
	Enabled               bool               `json:"enabled" yaml:"enabled"`
	LastModified          time.Time          `json:"last_modified" yaml:"last_modified"`
	Performance           PolicyPerformance  `json:"performance" yaml:"performance"`
}

func (p *ScalingPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownPeriodSeconds) * time.Second
}

// Clone returns a copy that shares no slices with p.
func (p ScalingPolicy) Clone() ScalingPolicy {
	c := p
	c.Triggers = append([]ScalingTrigger(nil), p.Triggers...)
	c.Actions = append([]ScalingAction(nil), p.Actions...)
	c.WeddingAwareRules = append([]WeddingAwareRule(nil), p.WeddingAwareRules...)
	return c
}
