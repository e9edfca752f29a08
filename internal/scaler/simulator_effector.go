package scaler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

var ErrSimulatedFailure = errors.New("simulated provisioning failure")

// SimulatorEffector applies decisions in-process after a fixed provisioning
// delay. Failures can be injected per service for testing.
type SimulatorEffector struct {
	provisionTime time.Duration
	failing       map[string]error
	applied       int
	mu            sync.Mutex
}

type SimulatorConfig struct {
	ProvisionTime time.Duration
}

func NewSimulatorEffector(cfg SimulatorConfig) *SimulatorEffector {
	if cfg.ProvisionTime < 0 {
		cfg.ProvisionTime = 0
	}
	return &SimulatorEffector{
		provisionTime: cfg.ProvisionTime,
		failing:       make(map[string]error),
	}
}

// FailService makes every subsequent Apply for the service return err. A nil
// err uses ErrSimulatedFailure.
func (s *SimulatorEffector) FailService(service string, err error) {
	if err == nil {
		err = ErrSimulatedFailure
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[service] = err
}

func (s *SimulatorEffector) RecoverService(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, service)
}

func (s *SimulatorEffector) Apply(ctx context.Context, decision models.ScalingDecision) (models.ScalingEvent, error) {
	start := time.Now()
	event := models.ScalingEvent{
		ID:             models.NewUUID(),
		Type:           decision.Type,
		Service:        decision.Service,
		Reason:         decision.Reason,
		Timestamp:      decision.Timestamp,
		BeforeState:    models.InstanceState{CurrentInstances: decision.FromInstances, TargetInstances: decision.ToInstances},
		AfterState:     models.InstanceState{CurrentInstances: decision.FromInstances, TargetInstances: decision.ToInstances},
		TriggeredBy:    decision.PolicyID,
		WeddingContext: decision.WeddingContext,
	}

	if decision.ToInstances < 0 {
		event.Fail(ErrInvalidTarget)
		return event, ErrInvalidTarget
	}

	logger.WithService(decision.Service).Infof("Simulating %s: %d -> %d instances", decision.Type, decision.FromInstances, decision.ToInstances)

	if s.provisionTime > 0 {
		timer := time.NewTimer(s.provisionTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			event.Duration = time.Since(start)
			event.Fail(ctx.Err())
			return event, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	err := s.failing[decision.Service]
	if err == nil {
		s.applied++
	}
	s.mu.Unlock()

	event.Duration = time.Since(start)
	if err != nil {
		event.Fail(err)
		return event, err
	}

	event.Success = true
	event.AfterState.CurrentInstances = decision.ToInstances
	return event, nil
}

// Applied returns how many decisions were applied successfully.
func (s *SimulatorEffector) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

func (s *SimulatorEffector) Close() error {
	return nil
}
