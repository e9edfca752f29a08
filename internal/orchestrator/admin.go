package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
	"github.com/OldStager01/wedding-autoscaler/pkg/rules"
	"github.com/OldStager01/wedding-autoscaler/pkg/validation"
)

var ErrPolicyNotFound = errors.New("policy not found")

const persistTimeout = 5 * time.Second

// savedConfig is what the admin API changed since startup. It is laid over
// every rules reload so a file change does not discard it.
type savedConfig struct {
	policies   map[string]models.ScalingPolicy
	deleted    map[string]bool
	thresholds []models.AlertThreshold
}

func newSavedConfig() savedConfig {
	return savedConfig{
		policies: make(map[string]models.ScalingPolicy),
		deleted:  make(map[string]bool),
	}
}

func (s *savedConfig) setPolicy(p models.ScalingPolicy) {
	s.policies[p.ID] = p
	delete(s.deleted, p.ID)
}

func (s *savedConfig) deletePolicy(id string) {
	delete(s.policies, id)
	s.deleted[id] = true
}

func (s *savedConfig) size() int {
	return len(s.policies) + len(s.deleted) + len(s.thresholds)
}

// Policies returns the live policy set ordered by id.
func (o *Orchestrator) Policies() []models.ScalingPolicy {
	o.configMu.RLock()
	defer o.configMu.RUnlock()

	out := make([]models.ScalingPolicy, 0, len(o.policies))
	for _, p := range o.policies {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (o *Orchestrator) Policy(id string) (models.ScalingPolicy, bool) {
	o.configMu.RLock()
	defer o.configMu.RUnlock()

	p, ok := o.policies[id]
	if !ok {
		return models.ScalingPolicy{}, false
	}
	return p.Clone(), true
}

func (o *Orchestrator) Thresholds() []models.AlertThreshold {
	o.configMu.RLock()
	defer o.configMu.RUnlock()
	return append([]models.AlertThreshold(nil), o.thresholds...)
}

// UpsertPolicy validates and installs a policy. On rejection the previous
// version, if any, stays in effect.
func (o *Orchestrator) UpsertPolicy(ctx context.Context, p models.ScalingPolicy) (models.ScalingPolicy, error) {
	p.ID = validation.SanitizeString(p.ID)
	if err := validation.ValidatePolicy(p); err != nil {
		return models.ScalingPolicy{}, o.reject("policy", p.ID, err)
	}
	if _, ok := o.registry.Service(p.Service); !ok {
		err := &validation.ConfigError{Field: "service", Reason: fmt.Sprintf("service %q is not registered", p.Service)}
		return models.ScalingPolicy{}, o.reject("policy", p.ID, err)
	}

	p = p.Clone()
	p.LastModified = o.clock.Now()
	if err := o.persistPolicy(ctx, p); err != nil {
		return models.ScalingPolicy{}, err
	}

	o.configMu.Lock()
	o.policies[p.ID] = p
	o.saved.setPolicy(p)
	o.configMu.Unlock()

	logger.WithPolicy(p.Service, p.ID).WithField("enabled", p.Enabled).Info("Policy updated")
	return p.Clone(), nil
}

// TogglePolicy enables or disables a policy without touching its rules.
func (o *Orchestrator) TogglePolicy(ctx context.Context, id string, enabled bool) (models.ScalingPolicy, error) {
	o.configMu.RLock()
	p, ok := o.policies[id]
	o.configMu.RUnlock()
	if !ok {
		return models.ScalingPolicy{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}

	p = p.Clone()
	p.Enabled = enabled
	p.LastModified = o.clock.Now()
	if err := o.persistPolicy(ctx, p); err != nil {
		return models.ScalingPolicy{}, err
	}

	o.configMu.Lock()
	o.policies[id] = p
	o.saved.setPolicy(p)
	o.configMu.Unlock()

	logger.WithPolicy(p.Service, id).Infof("Policy enabled=%t", enabled)
	return p.Clone(), nil
}

func (o *Orchestrator) DeletePolicy(ctx context.Context, id string) error {
	o.configMu.RLock()
	p, ok := o.policies[id]
	o.configMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}

	if o.persist.Config != nil {
		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := o.persist.Config.DeletePolicy(ctx, id); err != nil {
			return fmt.Errorf("failed to delete policy: %w", err)
		}
	}

	o.configMu.Lock()
	delete(o.policies, id)
	o.saved.deletePolicy(id)
	o.configMu.Unlock()

	logger.WithPolicy(p.Service, id).Info("Policy deleted")
	return nil
}

// UpsertThreshold replaces the threshold for the same (service, metric) or
// adds a new one.
func (o *Orchestrator) UpsertThreshold(ctx context.Context, t models.AlertThreshold) (models.AlertThreshold, error) {
	if err := validation.ValidateThreshold(t); err != nil {
		return models.AlertThreshold{}, o.reject("threshold", fmt.Sprintf("%s/%s", t.Service, t.Metric), err)
	}

	if o.persist.Config != nil {
		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := o.persist.Config.UpsertThreshold(pctx, t); err != nil {
			return models.AlertThreshold{}, fmt.Errorf("failed to persist threshold: %w", err)
		}
	}

	o.configMu.Lock()
	o.setThresholdLocked(t)
	o.saved.thresholds = upsertThreshold(o.saved.thresholds, t)
	o.configMu.Unlock()

	logger.WithService(t.Service).WithField("metric", t.Metric).Info("Alert threshold updated")
	return t, nil
}

// RegisterService adds a service or updates its bounds. The live instance
// count is kept and re-clamped.
func (o *Orchestrator) RegisterService(svc models.ServiceInstance) (models.ServiceInstance, error) {
	registered, err := o.registry.Register(svc)
	if err != nil {
		return models.ServiceInstance{}, o.reject("service", svc.Name, err)
	}
	metrics.Get().SetServiceInstances(registered.Name, registered.CurrentInstances)
	return registered, nil
}

// ApplyRules installs a whole rule set. Nothing is changed unless every
// entry validates. Changes made through the admin API are re-applied on top.
func (o *Orchestrator) ApplyRules(rs *rules.RuleSet) error {
	if err := rs.Validate(); err != nil {
		return o.reject("rules", "", err)
	}

	for _, svc := range rs.Services {
		if _, err := o.registry.Register(svc); err != nil {
			return o.reject("rules", "", err)
		}
	}
	for _, svc := range o.registry.List() {
		metrics.Get().SetServiceInstances(svc.Name, svc.CurrentInstances)
	}

	now := o.clock.Now()
	policies := make(map[string]models.ScalingPolicy, len(rs.Policies))
	for _, p := range rs.Policies {
		p = p.Clone()
		if p.LastModified.IsZero() {
			p.LastModified = now
		}
		policies[p.ID] = p
	}

	thresholds := append([]models.AlertThreshold(nil), rs.Thresholds...)

	o.configMu.Lock()
	for id := range o.saved.deleted {
		delete(policies, id)
	}
	for id, p := range o.saved.policies {
		policies[id] = p.Clone()
	}
	for _, t := range o.saved.thresholds {
		thresholds = upsertThreshold(thresholds, t)
	}
	o.policies = policies
	o.thresholds = thresholds
	saved := o.saved.size()
	o.configMu.Unlock()

	o.calendar.Replace(rs.Weddings)

	logger.WithFields(map[string]interface{}{
		"services":   len(rs.Services),
		"policies":   len(rs.Policies),
		"thresholds": len(rs.Thresholds),
		"weddings":   len(rs.Weddings),
		"admin":      saved,
	}).Info("Rules applied")
	return nil
}

// ReloadRules reads a rules file and applies it. A file that cannot be read
// or fails validation leaves the running configuration untouched.
func (o *Orchestrator) ReloadRules(path string) error {
	rs, err := rules.Load(path)
	if err != nil {
		if !validation.IsConfigError(err) {
			err = &validation.ConfigError{Field: "rules_file", Reason: err.Error()}
		}
		return o.reject("rules_file", path, err)
	}
	return o.ApplyRules(rs)
}

// ApplyStored overlays policies and thresholds saved through the admin API
// on top of the rules file. Invalid stored entries are skipped.
func (o *Orchestrator) ApplyStored(policies []models.ScalingPolicy, thresholds []models.AlertThreshold) int {
	applied := 0
	o.configMu.Lock()
	defer o.configMu.Unlock()

	for _, p := range policies {
		if err := validation.ValidatePolicy(p); err != nil {
			logger.WithPolicy(p.Service, p.ID).WithError(err).Warn("Skipping invalid stored policy")
			continue
		}
		o.policies[p.ID] = p.Clone()
		o.saved.setPolicy(p.Clone())
		applied++
	}
	for _, t := range thresholds {
		if err := validation.ValidateThreshold(t); err != nil {
			logger.WithService(t.Service).WithError(err).Warn("Skipping invalid stored threshold")
			continue
		}
		o.setThresholdLocked(t)
		o.saved.thresholds = upsertThreshold(o.saved.thresholds, t)
		applied++
	}
	return applied
}

func (o *Orchestrator) setThresholdLocked(t models.AlertThreshold) {
	o.thresholds = upsertThreshold(o.thresholds, t)
}

// upsertThreshold replaces the entry with the same (service, metric) or
// appends t.
func upsertThreshold(list []models.AlertThreshold, t models.AlertThreshold) []models.AlertThreshold {
	for i := range list {
		if list[i].Service == t.Service && list[i].Metric == t.Metric {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

// RestoreCooldowns seeds each service's last scaling time from persisted
// events so a restart does not reopen cooldown windows. Unknown services are
// skipped.
func (o *Orchestrator) RestoreCooldowns(last map[string]time.Time) int {
	restored := 0
	for name, at := range last {
		if _, ok := o.registry.Service(name); !ok {
			continue
		}
		o.registry.SetLastScaling(name, at)
		restored++
	}
	return restored
}

func (o *Orchestrator) persistPolicy(ctx context.Context, p models.ScalingPolicy) error {
	if o.persist.Config == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := o.persist.Config.UpsertPolicy(ctx, p); err != nil {
		return fmt.Errorf("failed to persist policy: %w", err)
	}
	return nil
}

func (o *Orchestrator) reject(kind, name string, err error) error {
	logger.WithError(err).WithFields(map[string]interface{}{
		"source": kind,
		"name":   name,
	}).Warn("Configuration rejected, keeping last-known-good")
	metrics.Get().IncConfigRejection(kind)
	o.publisher.ConfigRejected(kind, err)
	return err
}
