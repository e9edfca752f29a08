// Package rules reads and writes the YAML rules file that seeds services,
// alert thresholds, scaling policies and the wedding calendar.
package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
	"github.com/OldStager01/wedding-autoscaler/pkg/validation"
)

type RuleSet struct {
	Services   []models.ServiceInstance `yaml:"services"`
	Thresholds []models.AlertThreshold  `yaml:"thresholds"`
	Policies   []models.ScalingPolicy   `yaml:"policies"`
	Weddings   []models.WeddingEvent    `yaml:"weddings"`
}

// Load reads and validates a rules file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes rules YAML and validates every entry.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules yaml: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	return &rs, nil
}

// Save writes the rule set back as YAML.
func Save(path string, rs *RuleSet) error {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate collects every problem in the rule set instead of stopping at the
// first one.
func (rs *RuleSet) Validate() error {
	var errs []error

	services := make(map[string]bool, len(rs.Services))
	for _, s := range rs.Services {
		if services[s.Name] {
			errs = append(errs, &validation.ConfigError{Field: "services", Reason: fmt.Sprintf("duplicate service %q", s.Name)})
		}
		services[s.Name] = true
		if err := validation.ValidateService(s); err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", s.Name, err))
		}
	}

	seen := make(map[models.SeriesKey]bool, len(rs.Thresholds))
	for _, t := range rs.Thresholds {
		key := models.SeriesKey{Service: t.Service, Metric: t.Metric}
		if seen[key] {
			errs = append(errs, &validation.ConfigError{Field: "thresholds", Reason: fmt.Sprintf("duplicate threshold for %s", key)})
		}
		seen[key] = true
		if err := validation.ValidateThreshold(t); err != nil {
			errs = append(errs, fmt.Errorf("threshold %s: %w", key, err))
		}
	}

	ids := make(map[string]bool, len(rs.Policies))
	for _, p := range rs.Policies {
		if ids[p.ID] {
			errs = append(errs, &validation.ConfigError{Field: "policies", Reason: fmt.Sprintf("duplicate policy id %q", p.ID)})
		}
		ids[p.ID] = true
		if err := validation.ValidatePolicy(p); err != nil {
			errs = append(errs, err)
		}
		if len(services) > 0 && !services[p.Service] {
			errs = append(errs, &validation.ConfigError{Field: "policies", Reason: fmt.Sprintf("policy %q targets unknown service %q", p.ID, p.Service)})
		}
	}

	for i, w := range rs.Weddings {
		if w.ID == "" || w.Date.IsZero() {
			errs = append(errs, &validation.ConfigError{Field: fmt.Sprintf("weddings[%d]", i), Reason: "id and date are required"})
		}
	}

	return errors.Join(errs...)
}
