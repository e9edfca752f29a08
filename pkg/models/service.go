package models

import "time"

// ServiceInstance is the current state of one long-lived scaled service.
type ServiceInstance struct {
	Name              string     `json:"name" yaml:"name"`
	Type              string     `json:"type" yaml:"type"`
	CurrentInstances  int        `json:"current_instances" yaml:"current_instances"`
	TargetInstances   int        `json:"target_instances" yaml:"target_instances"`
	MinInstances      int        `json:"min_instances" yaml:"min_instances"`
	MaxInstances      int        `json:"max_instances" yaml:"max_instances"`
	CPUUtilization    float64    `json:"cpu_utilization" yaml:"-"`
	MemoryUtilization float64    `json:"memory_utilization" yaml:"-"`
	RequestRate       float64    `json:"request_rate" yaml:"-"`
	ResponseTimeMs    float64    `json:"response_time_ms" yaml:"-"`
	Region            string     `json:"region" yaml:"region"`
	LastScalingEvent  *time.Time `json:"last_scaling_event,omitempty" yaml:"-"`
}

// Clamp bounds an instance count to the service's [min, max] range.
func (s *ServiceInstance) Clamp(instances int) int {
	if instances < s.MinInstances {
		return s.MinInstances
	}
	if s.MaxInstances > 0 && instances > s.MaxInstances {
		return s.MaxInstances
	}
	return instances
}

func (s *ServiceInstance) CanScaleUp() bool {
	return s.CurrentInstances < s.MaxInstances
}

func (s *ServiceInstance) CanScaleDown() bool {
	return s.CurrentInstances > s.MinInstances
}

// SinceLastScaling reports the elapsed time since the last applied decision.
// The second return value is false if the service has never been scaled.
func (s *ServiceInstance) SinceLastScaling(now time.Time) (time.Duration, bool) {
	if s.LastScalingEvent == nil {
		return 0, false
	}
	return now.Sub(*s.LastScalingEvent), true
}
