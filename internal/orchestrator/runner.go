package orchestrator

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
)

type RunnerConfig struct {
	Interval time.Duration
	// Timeout bounds one evaluation pass. Defaults to the interval.
	Timeout time.Duration
	Clock   clock.Clock
}

// Runner drives periodic evaluation passes.
type Runner struct {
	orch     *Orchestrator
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewRunner(orch *Orchestrator, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		orch:     orch,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.run()

	logger.WithField("interval", r.interval.String()).Info("Evaluation loop started")
}

func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	logger.Info("Evaluation loop stopped")
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) run() {
	defer r.wg.Done()

	tick := r.clock.NewTicker(r.interval)
	defer tick.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-tick.C():
			r.runCycle()
		}
	}
}

func (r *Runner) runCycle() {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("Evaluation pass panicked: %v", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	decisions := r.orch.EvaluateOnce(ctx, r.clock.Now())
	if len(decisions) > 0 {
		logger.Debugf("Evaluation pass queued %d decisions", len(decisions))
	}
}
