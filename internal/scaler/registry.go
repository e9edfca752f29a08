package scaler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
	"github.com/OldStager01/wedding-autoscaler/pkg/validation"
)

// Registry tracks every managed service. Services are registered once and
// never removed.
type Registry struct {
	services map[string]*models.ServiceInstance
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*models.ServiceInstance),
	}
}

// Register adds a service or updates the configuration of an existing one.
// Instance bounds, type and region are taken from svc; the live instance
// count and scaling history of a known service are kept and re-clamped.
func (r *Registry) Register(svc models.ServiceInstance) (models.ServiceInstance, error) {
	if err := validation.ValidateService(svc); err != nil {
		return models.ServiceInstance{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.services[svc.Name]
	if !ok {
		s := svc
		if s.TargetInstances == 0 {
			s.TargetInstances = s.CurrentInstances
		}
		r.services[s.Name] = &s
		logger.WithService(s.Name).Infof("Service registered with %d instances [%d, %d]", s.CurrentInstances, s.MinInstances, s.MaxInstances)
		return s, nil
	}

	existing.Type = svc.Type
	existing.Region = svc.Region
	existing.MinInstances = svc.MinInstances
	existing.MaxInstances = svc.MaxInstances
	existing.CurrentInstances = existing.Clamp(existing.CurrentInstances)
	existing.TargetInstances = existing.Clamp(existing.TargetInstances)
	logger.WithService(svc.Name).Infof("Service bounds updated to [%d, %d]", svc.MinInstances, svc.MaxInstances)
	return *existing, nil
}

func (r *Registry) Service(name string) (models.ServiceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[name]
	if !ok {
		return models.ServiceInstance{}, false
	}
	return copyService(s), true
}

func (r *Registry) List() []models.ServiceInstance {
	r.mu.RLock()
	out := make([]models.ServiceInstance, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, copyService(s))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Refresh copies a sample into the matching utilization field. Samples for
// unknown services or metrics without a field are ignored.
func (r *Registry) Refresh(sample models.MetricSample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.services[sample.Service]
	if !ok {
		return false
	}
	switch sample.Metric {
	case models.MetricCPU:
		s.CPUUtilization = sample.Value
	case models.MetricMemory:
		s.MemoryUtilization = sample.Value
	case models.MetricRequests:
		s.RequestRate = sample.Value
	case models.MetricResponseTime:
		s.ResponseTimeMs = sample.Value
	default:
		return false
	}
	return true
}

// MarkScaling records that a decision was handed to the effector. The
// cooldown clock starts here, whether or not the effector later succeeds.
func (r *Registry) MarkScaling(decision models.ScalingDecision) (models.ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.services[decision.Service]
	if !ok {
		return models.ServiceInstance{}, fmt.Errorf("%w: %s", ErrServiceNotFound, decision.Service)
	}
	before := copyService(s)
	s.TargetInstances = s.Clamp(decision.ToInstances)
	at := decision.Timestamp
	s.LastScalingEvent = &at
	return before, nil
}

// ApplyResult settles a dispatched decision. On success the instance count
// moves to the clamped target; on failure the target falls back to the
// current count. The cooldown timestamp is left as MarkScaling set it.
func (r *Registry) ApplyResult(decision models.ScalingDecision, success bool) (models.ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.services[decision.Service]
	if !ok {
		return models.ServiceInstance{}, fmt.Errorf("%w: %s", ErrServiceNotFound, decision.Service)
	}
	if success {
		s.CurrentInstances = s.Clamp(decision.ToInstances)
	}
	s.TargetInstances = s.CurrentInstances
	return copyService(s), nil
}

// SetLastScaling restores a cooldown timestamp, e.g. from persisted events.
func (r *Registry) SetLastScaling(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.services[name]; ok {
		if s.LastScalingEvent == nil || at.After(*s.LastScalingEvent) {
			t := at
			s.LastScalingEvent = &t
		}
	}
}

func copyService(s *models.ServiceInstance) models.ServiceInstance {
	c := *s
	if s.LastScalingEvent != nil {
		t := *s.LastScalingEvent
		c.LastScalingEvent = &t
	}
	return c
}
