// Package policy evaluates scaling policies against recent samples and the
// wedding calendar, and emits clamped scaling decisions.
package policy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/wedding"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type SkipReason string

const (
	SkipCooldown       SkipReason = "cooldown"
	SkipConflict       SkipReason = "conflict"
	SkipMissingMetric  SkipReason = "missing_metric"
	SkipNoOp           SkipReason = "noop"
	SkipUnknownService SkipReason = "unknown_service"
	SkipError          SkipReason = "error"
)

// Skip records why a policy produced no decision in a pass. Policies whose
// triggers simply did not fire are not reported.
type Skip struct {
	PolicyID string     `json:"policy_id"`
	Service  string     `json:"service"`
	Reason   SkipReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

type Result struct {
	Decisions []models.ScalingDecision `json:"decisions"`
	Skipped   []Skip                   `json:"skipped"`
}

// ServiceSource looks up the current state of a managed service.
type ServiceSource interface {
	Service(name string) (models.ServiceInstance, bool)
}

type Engine struct {
	services ServiceSource
	resolver *wedding.Resolver
}

func NewEngine(services ServiceSource, resolver *wedding.Resolver) *Engine {
	if resolver == nil {
		resolver = wedding.NewResolver(wedding.DefaultSeason)
	}
	return &Engine{
		services: services,
		resolver: resolver,
	}
}

type candidate struct {
	order    int
	policy   models.ScalingPolicy
	decision models.ScalingDecision
}

// Evaluate runs one pass and returns only the emitted decisions.
func (e *Engine) Evaluate(policies []models.ScalingPolicy, samples SampleReader, now time.Time, calendar models.WeddingCalendarView) []models.ScalingDecision {
	return e.EvaluateDetailed(policies, samples, now, calendar).Decisions
}

// EvaluateDetailed runs one pass and also reports skipped policies.
func (e *Engine) EvaluateDetailed(policies []models.ScalingPolicy, samples SampleReader, now time.Time, calendar models.WeddingCalendarView) Result {
	var result Result

	enabled := make([]models.ScalingPolicy, 0, len(policies))
	for _, p := range policies {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].ID < enabled[j].ID
	})

	byService := make(map[string][]candidate)
	var serviceOrder []string

	for i, p := range enabled {
		c, skip, err := e.evaluatePolicy(p, samples, now, calendar)
		if err != nil {
			logger.WithPolicy(p.Service, p.ID).WithError(err).Error("Policy evaluation failed")
			result.Skipped = append(result.Skipped, Skip{PolicyID: p.ID, Service: p.Service, Reason: SkipError, Detail: err.Error()})
			continue
		}
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		if c == nil {
			continue
		}
		c.order = i
		if _, seen := byService[p.Service]; !seen {
			serviceOrder = append(serviceOrder, p.Service)
		}
		byService[p.Service] = append(byService[p.Service], *c)
	}

	for _, service := range serviceOrder {
		candidates := byService[service]
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].decision.EffectivePriority != candidates[j].decision.EffectivePriority {
				return candidates[i].decision.EffectivePriority > candidates[j].decision.EffectivePriority
			}
			return candidates[i].order < candidates[j].order
		})

		winner := candidates[0]
		result.Decisions = append(result.Decisions, winner.decision)
		logger.WithPolicy(service, winner.policy.ID).WithFields(map[string]interface{}{
			"type":               winner.decision.Type,
			"from":               winner.decision.FromInstances,
			"to":                 winner.decision.ToInstances,
			"effective_priority": winner.decision.EffectivePriority,
		}).Info("Scaling decision emitted")

		for _, loser := range candidates[1:] {
			logger.WithPolicy(service, loser.policy.ID).Infof("Skipped in favour of policy %s", winner.policy.ID)
			result.Skipped = append(result.Skipped, Skip{
				PolicyID: loser.policy.ID,
				Service:  service,
				Reason:   SkipConflict,
				Detail:   fmt.Sprintf("lost to %s", winner.policy.ID),
			})
		}
	}

	return result
}

// evaluatePolicy returns a candidate when the policy fires and survives
// cooldown and clamping, a skip when it fires but cannot act, or neither.
func (e *Engine) evaluatePolicy(p models.ScalingPolicy, samples SampleReader, now time.Time, calendar models.WeddingCalendarView) (c *candidate, skip *Skip, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, skip, err = nil, nil, fmt.Errorf("panic evaluating policy %s: %v", p.ID, r)
		}
	}()

	fired, reasons, missing := e.evaluateTriggers(p, samples, now)
	if !fired {
		if missing != nil && len(missing) == len(p.Triggers) {
			return nil, &Skip{PolicyID: p.ID, Service: p.Service, Reason: SkipMissingMetric, Detail: missing[0].Error()}, nil
		}
		return nil, nil, nil
	}

	service, ok := e.services.Service(p.Service)
	if !ok {
		logger.WithPolicy(p.Service, p.ID).Warn("Policy fired for unregistered service")
		return nil, &Skip{PolicyID: p.ID, Service: p.Service, Reason: SkipUnknownService}, nil
	}

	modifier, activeRules := e.resolver.Compose(p.WeddingAwareRules, now, calendar)

	decision, ok := buildDecision(p, service, modifier, now)
	if !ok {
		logger.WithPolicy(p.Service, p.ID).Debug("Policy fired but every action is a no-op after clamping")
		return nil, &Skip{PolicyID: p.ID, Service: p.Service, Reason: SkipNoOp}, nil
	}

	if remaining, cooling := CooldownRemaining(service, p.Cooldown(), modifier.CooldownReduction, decision.Type, now); cooling {
		logger.WithPolicy(p.Service, p.ID).Debugf("In cooldown, %s remaining", remaining.Round(time.Second))
		return nil, &Skip{
			PolicyID: p.ID,
			Service:  p.Service,
			Reason:   SkipCooldown,
			Detail:   fmt.Sprintf("%s remaining", remaining.Round(time.Second)),
		}, nil
	}

	decision.Reason = fmt.Sprintf("policy %s fired: %s", p.ID, strings.Join(reasons, "; "))
	if len(activeRules) > 0 {
		decision.WeddingContext = &models.WeddingContext{ActiveRules: activeRules, Modifier: modifier}
		decision.Reason += fmt.Sprintf(" (wedding rules: %s)", strings.Join(activeRules, ", "))
	}

	return &candidate{policy: p, decision: decision}, nil, nil
}

func (e *Engine) evaluateTriggers(p models.ScalingPolicy, samples SampleReader, now time.Time) (bool, []string, []error) {
	var (
		fired   bool
		reasons []string
		missing []error
	)
	for _, t := range p.Triggers {
		res, err := EvaluateTrigger(p.Service, t, samples, now)
		if err != nil {
			var mm *MissingMetricError
			if errors.As(err, &mm) {
				logger.WithPolicy(p.Service, p.ID).WithField("metric", t.Metric).Warn(err.Error())
			}
			missing = append(missing, err)
			continue
		}
		if res.Fired {
			fired = true
			reasons = append(reasons, res.String())
		}
	}
	return fired, reasons, missing
}

// buildDecision picks the first action that changes the instance count after
// the capacity multiplier and clamping are applied.
func buildDecision(p models.ScalingPolicy, service models.ServiceInstance, modifier models.Modifier, now time.Time) (models.ScalingDecision, bool) {
	for _, action := range p.Actions {
		delta := ScaledDelta(action, service.CurrentInstances, modifier.CapacityMultiplier)
		if delta == 0 {
			continue
		}
		target := service.Clamp(service.CurrentInstances + delta)
		if target == service.CurrentInstances {
			continue
		}
		return models.ScalingDecision{
			ID:                models.NewUUID(),
			PolicyID:          p.ID,
			Service:           service.Name,
			Type:              action.Type,
			FromInstances:     service.CurrentInstances,
			ToInstances:       target,
			Timestamp:         now,
			EffectivePriority: p.Priority + modifier.PriorityBoost,
		}, true
	}
	return models.ScalingDecision{}, false
}

// ScaledDelta returns the signed instance change for an action. The
// multiplier applies to the magnitude and the result is floored, but never
// drops a non-zero step to zero.
func ScaledDelta(action models.ScalingAction, current int, multiplier float64) int {
	base := action.Adjustment
	if action.Percent > 0 {
		base = int(math.Ceil(float64(current) * action.Percent / 100))
		if base < 1 {
			base = 1
		}
	}
	if base <= 0 {
		return 0
	}
	if multiplier <= 0 {
		multiplier = 1
	}

	scaled := int(math.Floor(float64(base) * multiplier))
	if scaled < 1 {
		scaled = 1
	}

	if action.Type == models.DecisionScaleDown {
		return -scaled
	}
	return scaled
}

// CooldownRemaining reports how long the service must still wait before a
// decision of type t may be applied. Emergency and manual decisions never
// wait, and neither does a service that has never been scaled.
func CooldownRemaining(service models.ServiceInstance, cooldown time.Duration, reduction float64, t models.DecisionType, now time.Time) (time.Duration, bool) {
	if t.BypassesCooldown() || cooldown <= 0 {
		return 0, false
	}
	elapsed, ok := service.SinceLastScaling(now)
	if !ok {
		return 0, false
	}
	if reduction < 0 {
		reduction = 0
	}
	if reduction > 1 {
		reduction = 1
	}
	effective := time.Duration(float64(cooldown) * (1 - reduction))
	if elapsed < effective {
		return effective - elapsed, true
	}
	return 0, false
}
