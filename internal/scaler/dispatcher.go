package scaler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Listener observes the progress of dispatched decisions.
type Listener interface {
	ScalingStarted(decision models.ScalingDecision)
	ScalingFinished(event models.ScalingEvent)
}

type DispatcherConfig struct {
	MaxConcurrency int
	QueueSize      int
	CallTimeout    time.Duration
}

// Dispatcher hands decisions to the effector without blocking the caller.
// Decisions for one service run in submission order; at most MaxConcurrency
// effector calls are in flight across all services.
type Dispatcher struct {
	effector  Effector
	registry  *Registry
	listener  Listener
	timeout   time.Duration
	queueSize int
	sem       chan struct{}

	mu     sync.Mutex
	queues map[string]chan models.ScalingDecision
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(effector Effector, registry *Registry, listener Listener, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		effector:  effector,
		registry:  registry,
		listener:  listener,
		timeout:   cfg.CallTimeout,
		queueSize: cfg.QueueSize,
		sem:       make(chan struct{}, cfg.MaxConcurrency),
		queues:    make(map[string]chan models.ScalingDecision),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit queues a decision for its service and starts that service's
// cooldown immediately.
func (d *Dispatcher) Submit(decision models.ScalingDecision) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	q, ok := d.queues[decision.Service]
	if !ok {
		q = make(chan models.ScalingDecision, d.queueSize)
		d.queues[decision.Service] = q
		d.wg.Add(1)
		go d.worker(q)
	}
	if len(q) == cap(q) {
		logger.WithService(decision.Service).Warn("Scaling queue full, dropping decision")
		return fmt.Errorf("%w: %s", ErrQueueFull, decision.Service)
	}

	if _, err := d.registry.MarkScaling(decision); err != nil {
		return err
	}
	q <- decision
	return nil
}

// Pending returns the number of queued decisions not yet picked up.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

func (d *Dispatcher) worker(q <-chan models.ScalingDecision) {
	defer d.wg.Done()
	for decision := range q {
		d.execute(decision)
	}
}

// Execute applies one decision synchronously and always returns the
// resulting event, successful or not.
func (d *Dispatcher) Execute(decision models.ScalingDecision) models.ScalingEvent {
	if _, err := d.registry.MarkScaling(decision); err != nil {
		event := models.NewScalingEvent(decision, models.ServiceInstance{Name: decision.Service})
		event.Fail(err)
		return *event
	}
	return d.execute(decision)
}

func (d *Dispatcher) execute(decision models.ScalingDecision) models.ScalingEvent {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	log := logger.WithService(decision.Service)
	before, _ := d.registry.Service(decision.Service)
	if d.listener != nil {
		d.listener.ScalingStarted(decision)
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result, err := d.effector.Apply(ctx, decision)
	elapsed := time.Since(start)

	event := models.NewScalingEvent(decision, before)
	if result.ID != "" {
		event.ID = result.ID
	}
	event.Duration = elapsed
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", d.timeout, err)
		}
		err = &EffectorError{Service: decision.Service, Err: err}
		event.Fail(err)
	} else {
		event.Success = true
	}

	after, regErr := d.registry.ApplyResult(decision, err == nil)
	if regErr != nil {
		log.WithError(regErr).Error("Failed to record scaling result")
	}
	event.AfterState = models.StateOf(after)

	m := metrics.Get()
	m.ObserveEffectorLatency(decision.Service, event.Success, elapsed)
	m.IncScalingEvent(decision.Service, string(decision.Type), event.Success)
	m.SetServiceInstances(decision.Service, after.CurrentInstances)

	if event.Success {
		log.Infof("Scaling complete: %d -> %d instances in %s", event.BeforeState.CurrentInstances, event.AfterState.CurrentInstances, elapsed.Round(time.Millisecond))
	} else {
		log.WithError(err).Errorf("Scaling failed after %s", elapsed.Round(time.Millisecond))
	}

	if d.listener != nil {
		d.listener.ScalingFinished(*event)
	}
	return *event
}

// Stop refuses new decisions and waits for queued ones to finish. If ctx
// expires first, in-flight effector calls are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
