package scaler

import (
	"context"
	"errors"
	"fmt"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

var (
	ErrServiceNotFound  = errors.New("service not found")
	ErrInvalidTarget    = errors.New("invalid target instance count")
	ErrQueueFull        = errors.New("scaling queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

// EffectorError wraps a failure reported by the scaling effector.
type EffectorError struct {
	Service string
	Err     error
}

func (e *EffectorError) Error() string {
	return fmt.Sprintf("effector failed for %s: %v", e.Service, e.Err)
}

func (e *EffectorError) Unwrap() error {
	return e.Err
}

// Effector applies scaling decisions to real (or simulated) infrastructure.
// Implementations may be slow and must honour ctx.
type Effector interface {
	Apply(ctx context.Context, decision models.ScalingDecision) (models.ScalingEvent, error)

	// Close releases resources
	Close() error
}
