// Package simulator generates synthetic wedding-platform load for demos and
// soak tests. A Feed satisfies ingest.Feed.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Series is one synthetic (service, metric) stream.
type Series struct {
	Service string
	Metric  models.MetricKind
	Base    float64
	Pattern Pattern
	// Ceiling caps the value, e.g. 100 for utilization percentages. Zero
	// means uncapped.
	Ceiling float64
}

type Config struct {
	Series   []Series
	Interval time.Duration
	// Jitter is the maximum relative noise added to each value.
	Jitter float64
	Seed   int64
	Clock  clock.Clock
}

type Feed struct {
	series   []Series
	interval time.Duration
	jitter   float64
	clock    clock.Clock

	mu     sync.Mutex
	rng    *rand.Rand
	spikes map[string]spike
}

type spike struct {
	factor float64
	until  time.Time
}

func NewFeed(cfg Config) *Feed {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	for i := range cfg.Series {
		if cfg.Series[i].Pattern == nil {
			cfg.Series[i].Pattern = SteadyPattern{}
		}
	}

	return &Feed{
		series:   cfg.Series,
		interval: cfg.Interval,
		jitter:   math.Max(cfg.Jitter, 0),
		clock:    cfg.Clock,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		spikes:   make(map[string]spike),
	}
}

// Spike multiplies every series of service by factor until d has passed.
func (f *Feed) Spike(service string, factor float64, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spikes[service] = spike{factor: factor, until: f.clock.Now().Add(d)}
	logger.WithService(service).Infof("Synthetic spike x%.1f for %s", factor, d)
}

// Sample produces the value of s at the given time.
func (f *Feed) Sample(s Series, at time.Time) models.MetricSample {
	value := s.Pattern.Apply(s.Base, at)

	f.mu.Lock()
	if sp, ok := f.spikes[s.Service]; ok {
		if at.Before(sp.until) {
			value *= sp.factor
		} else {
			delete(f.spikes, s.Service)
		}
	}
	if f.jitter > 0 {
		value *= 1 + (f.rng.Float64()*2-1)*f.jitter
	}
	f.mu.Unlock()

	if value < 0 {
		value = 0
	}
	if s.Ceiling > 0 && value > s.Ceiling {
		value = s.Ceiling
	}
	return models.MetricSample{Service: s.Service, Metric: s.Metric, Value: value, Timestamp: at}
}

func (f *Feed) Run(ctx context.Context, handle ingest.Handler) error {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	logger.WithField("series", len(f.series)).Info("Synthetic sample feed started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at := <-ticker.C():
			for _, s := range f.series {
				handle(f.Sample(s, at))
			}
		}
	}
}

func (f *Feed) Close() error {
	return nil
}
