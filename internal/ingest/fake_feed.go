package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// FakeMetricFeed replays a fixed list of samples, optionally pausing between
// them, and then blocks until cancelled.
type FakeMetricFeed struct {
	samples  []models.MetricSample
	interval time.Duration

	mu         sync.Mutex
	shouldFail bool
	failErr    error
}

func NewFakeMetricFeed(samples []models.MetricSample, interval time.Duration) *FakeMetricFeed {
	return &FakeMetricFeed{samples: samples, interval: interval}
}

func (f *FakeMetricFeed) SetShouldFail(shouldFail bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = shouldFail
	f.failErr = err
}

func (f *FakeMetricFeed) Run(ctx context.Context, handle Handler) error {
	f.mu.Lock()
	fail, err := f.shouldFail, f.failErr
	f.mu.Unlock()
	if fail {
		return err
	}

	for _, s := range f.samples {
		if f.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.interval):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		handle(s)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (f *FakeMetricFeed) Close() error {
	return nil
}
