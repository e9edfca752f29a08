package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

var (
	// ErrInvalidInput indicates the input failed validation
	ErrInvalidInput = errors.New("invalid input")

	// Service name must be alphanumeric with hyphens/underscores, 2-100 chars
	serviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{1,99}$`)

	clockRegex = regexp.MustCompile(`^(([01][0-9]|2[0-3]):[0-5][0-9]|24:00)$`)
)

const maxPriority = 10

// ConfigError describes one rejected configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidInput
}

func configErr(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err carries at least one ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateServiceName checks if a service name is valid
func ValidateServiceName(name string) error {
	name = SanitizeString(name)

	if name == "" {
		return configErr("service", "cannot be empty")
	}
	if name == models.WildcardService {
		return configErr("service", "%q is reserved for wildcard thresholds", name)
	}
	if !serviceNameRegex.MatchString(name) {
		return configErr("service", "must start with alphanumeric and contain only letters, numbers, hyphens, and underscores")
	}
	return nil
}

// ValidateInstanceCount checks if min/max instance counts are valid
func ValidateInstanceCount(min, max int) error {
	if min < 0 {
		return configErr("min_instances", "must not be negative")
	}
	if max < min {
		return configErr("max_instances", "must be greater than or equal to min_instances")
	}
	if max > 1000 {
		return configErr("max_instances", "cannot exceed 1000")
	}
	return nil
}

func ValidateService(s models.ServiceInstance) error {
	var errs []error
	if err := ValidateServiceName(s.Name); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateInstanceCount(s.MinInstances, s.MaxInstances); err != nil {
		errs = append(errs, err)
	}
	if s.CurrentInstances < s.MinInstances || s.CurrentInstances > s.MaxInstances {
		errs = append(errs, configErr("current_instances", "%d outside [%d, %d]", s.CurrentInstances, s.MinInstances, s.MaxInstances))
	}
	return errors.Join(errs...)
}

// ValidateThreshold rejects thresholds whose levels are out of order.
func ValidateThreshold(t models.AlertThreshold) error {
	var errs []error
	if t.Service != models.WildcardService {
		if err := ValidateServiceName(t.Service); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Metric == "" {
		errs = append(errs, configErr("metric", "is required"))
	}
	if t.Warning > t.Critical {
		errs = append(errs, configErr("warning", "%.2f exceeds critical %.2f", t.Warning, t.Critical))
	}
	if t.Critical > t.Emergency {
		errs = append(errs, configErr("critical", "%.2f exceeds emergency %.2f", t.Critical, t.Emergency))
	}
	return errors.Join(errs...)
}

func ValidateTrigger(field string, t models.ScalingTrigger) error {
	var errs []error
	if t.Metric == "" {
		errs = append(errs, configErr(field+".metric", "is required"))
	}
	if !t.Condition.Valid() {
		errs = append(errs, configErr(field+".condition", "must be one of >=, <=, =="))
	}
	if !t.Aggregation.Valid() {
		errs = append(errs, configErr(field+".aggregation", "must be one of avg, max, min"))
	}
	if t.WindowSizeSeconds <= 0 {
		errs = append(errs, configErr(field+".window_size_seconds", "must be positive"))
	}
	if t.DurationSeconds < 0 {
		errs = append(errs, configErr(field+".duration_seconds", "must not be negative"))
	}
	return errors.Join(errs...)
}

func ValidateAction(field string, a models.ScalingAction) error {
	var errs []error
	switch a.Type {
	case models.DecisionScaleUp, models.DecisionScaleDown, models.DecisionEmergencyScale:
	default:
		errs = append(errs, configErr(field+".type", "must be one of scale_up, scale_down, emergency_scale"))
	}
	if a.Adjustment < 0 {
		errs = append(errs, configErr(field+".adjustment", "must not be negative"))
	}
	if a.Percent < 0 {
		errs = append(errs, configErr(field+".percent", "must not be negative"))
	}
	if a.Adjustment == 0 && a.Percent == 0 {
		errs = append(errs, configErr(field, "needs an adjustment or a percent"))
	}
	return errors.Join(errs...)
}

func ValidateRule(field string, r models.WeddingAwareRule) error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, configErr(field+".name", "is required"))
	}
	if !r.Condition.Valid() {
		errs = append(errs, configErr(field+".condition", "must be one of saturday_peak, wedding_season, specific_event"))
	}
	m := r.ScalingModifier
	if m.CapacityMultiplier < 0 {
		errs = append(errs, configErr(field+".scaling_modifier.capacity_multiplier", "must not be negative"))
	}
	if m.CooldownReduction < 0 || m.CooldownReduction > 1 {
		errs = append(errs, configErr(field+".scaling_modifier.cooldown_reduction", "must be within [0, 1]"))
	}
	if m.PriorityBoost < 0 {
		errs = append(errs, configErr(field+".scaling_modifier.priority_boost", "must not be negative"))
	}

	p := r.Parameters
	for _, tw := range []struct{ name, value string }{
		{"time_window_start", p.TimeWindowStart},
		{"time_window_end", p.TimeWindowEnd},
	} {
		if tw.value != "" && !clockRegex.MatchString(tw.value) {
			errs = append(errs, configErr(field+".parameters."+tw.name, "must be HH:MM"))
		}
	}
	if (p.TimeWindowStart == "") != (p.TimeWindowEnd == "") {
		errs = append(errs, configErr(field+".parameters", "time_window_start and time_window_end must be set together"))
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			errs = append(errs, configErr(field+".parameters.timezone", "unknown location %q", p.Timezone))
		}
	}
	if p.HoursBeforeWedding < 0 || p.LeadTimeHours < 0 || p.WeddingCountThreshold < 0 {
		errs = append(errs, configErr(field+".parameters", "hour and count parameters must not be negative"))
	}
	if r.Condition == models.RuleSpecificEvent && p.EventID == "" && p.EventName == "" {
		errs = append(errs, configErr(field+".parameters", "specific_event needs event_id or event_name"))
	}
	for _, month := range []time.Month{p.SeasonStartMonth, p.SeasonEndMonth} {
		if month < 0 || month > 12 {
			errs = append(errs, configErr(field+".parameters", "season months must be within 1-12"))
			break
		}
	}
	return errors.Join(errs...)
}

// ValidatePolicy checks a policy and all nested triggers, actions and rules.
func ValidatePolicy(p models.ScalingPolicy) error {
	var errs []error
	if SanitizeString(p.ID) == "" {
		errs = append(errs, configErr("id", "is required"))
	}
	if err := ValidateServiceName(p.Service); err != nil {
		errs = append(errs, err)
	}
	if p.Priority < 0 || p.Priority > maxPriority {
		errs = append(errs, configErr("priority", "must be within [0, %d]", maxPriority))
	}
	if p.CooldownPeriodSeconds < 0 {
		errs = append(errs, configErr("cooldown_period_seconds", "must not be negative"))
	}
	if len(p.Triggers) == 0 {
		errs = append(errs, configErr("triggers", "at least one trigger is required"))
	}
	if len(p.Actions) == 0 {
		errs = append(errs, configErr("actions", "at least one action is required"))
	}
	for i, t := range p.Triggers {
		if err := ValidateTrigger(fmt.Sprintf("triggers[%d]", i), t); err != nil {
			errs = append(errs, err)
		}
	}
	for i, a := range p.Actions {
		if err := ValidateAction(fmt.Sprintf("actions[%d]", i), a); err != nil {
			errs = append(errs, err)
		}
	}
	for i, r := range p.WeddingAwareRules {
		if err := ValidateRule(fmt.Sprintf("wedding_aware_rules[%d]", i), r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("policy %q: %w", p.ID, errors.Join(errs...))
}
