package scaler

import (
	"context"
	"errors"

	"github.com/OldStager01/wedding-autoscaler/internal/resilience"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// BreakerEffector guards another effector with a circuit breaker, so a
// failing provider is not called on every decision.
type BreakerEffector struct {
	next    Effector
	breaker *resilience.CircuitBreaker
}

func NewBreakerEffector(next Effector, breaker *resilience.CircuitBreaker) *BreakerEffector {
	return &BreakerEffector{next: next, breaker: breaker}
}

func (b *BreakerEffector) Apply(ctx context.Context, decision models.ScalingDecision) (models.ScalingEvent, error) {
	var event models.ScalingEvent
	err := b.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		var applyErr error
		event, applyErr = b.next.Apply(ctx, decision)
		return applyErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		event = *models.NewScalingEvent(decision, models.ServiceInstance{
			Name:             decision.Service,
			CurrentInstances: decision.FromInstances,
			TargetInstances:  decision.ToInstances,
		})
		event.AfterState = event.BeforeState
		event.Fail(err)
	}
	return event, err
}

func (b *BreakerEffector) State() resilience.State {
	return b.breaker.State()
}

func (b *BreakerEffector) Close() error {
	return b.next.Close()
}
