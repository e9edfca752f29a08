package capacity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// ErrSuperseded is returned by Request when a newer request cancelled it.
var ErrSuperseded = errors.New("projection superseded by a newer request")

// RunFunc produces one projection report per service.
type RunFunc func(ctx context.Context) ([]models.ProjectionReport, error)

// Scheduler runs projections on a cron schedule and on demand. Runs are not
// queued: a new request cancels the one in flight.
type Scheduler struct {
	run        RunFunc
	cron       *cron.Cron
	onComplete func([]models.ProjectionReport)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     []models.ProjectionReport
	latestAt   time.Time
	running    bool
}

type SchedulerOption func(*Scheduler)

// WithLocation sets the timezone the cron schedule is interpreted in.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc == nil {
			return
		}
		s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	}
}

// OnComplete registers a callback for every run that finished.
func OnComplete(fn func([]models.ProjectionReport)) SchedulerOption {
	return func(s *Scheduler) { s.onComplete = fn }
}

func NewScheduler(run RunFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		run:  run,
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the timezone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location {
	return s.cron.Location()
}

// Start registers the schedule (six fields, seconds first) and starts the
// cron runner.
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("projection scheduler is already running")
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Request(context.Background()); err != nil && !errors.Is(err, ErrSuperseded) {
			logger.WithError(err).Error("Scheduled projection failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid projection schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true
	logger.WithField("schedule", schedule).Info("Projection scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn("Timeout waiting for projection run to stop")
	}
	logger.Info("Projection scheduler stopped")
}

// Request runs a projection now, cancelling any run still in progress. The
// cancelled run returns ErrSuperseded and its result is discarded.
func (s *Scheduler) Request(ctx context.Context) ([]models.ProjectionReport, error) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	defer cancel()

	start := time.Now()
	reports, err := s.run(runCtx)

	s.mu.Lock()
	superseded := gen != s.generation
	if !superseded {
		s.cancel = nil
	}
	if err == nil && !superseded {
		s.latest = reports
		s.latestAt = time.Now()
	}
	s.mu.Unlock()

	if superseded {
		logger.WithField("generation", gen).Debug("Projection run superseded")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"services": len(reports),
		"duration": time.Since(start).String(),
	}).Info("Capacity projection complete")
	if s.onComplete != nil {
		s.onComplete(reports)
	}
	return reports, nil
}

// Latest returns the most recent completed run and when it finished.
func (s *Scheduler) Latest() ([]models.ProjectionReport, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ProjectionReport, len(s.latest))
	copy(out, s.latest)
	return out, s.latestAt
}
