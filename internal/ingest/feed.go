// Package ingest delivers metric samples from external sources to the
// engine. Delivery is at-least-once; the store drops duplicates.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

var (
	ErrInvalidSample = errors.New("invalid metric sample")
	ErrFeedClosed    = errors.New("feed closed")
)

// Handler receives every decoded sample.
type Handler func(models.MetricSample)

// Feed is a source of metric samples. Run blocks until ctx is cancelled or
// the feed gives up.
type Feed interface {
	Run(ctx context.Context, handle Handler) error

	// Close releases any resources held by the feed
	Close() error
}

// Decode parses a single JSON sample or a JSON array of samples. Samples
// without a timestamp are stamped with now.
func Decode(data []byte, now time.Time) ([]models.MetricSample, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidSample)
	}

	var samples []models.MetricSample
	if data[0] == '[' {
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
		}
	} else {
		var s models.MetricSample
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
		}
		samples = []models.MetricSample{s}
	}

	for i := range samples {
		if err := Check(samples[i]); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = now
		}
	}
	return samples, nil
}

// Check rejects samples that cannot be attributed to a series.
func Check(s models.MetricSample) error {
	if s.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidSample)
	}
	if s.Metric == "" {
		return fmt.Errorf("%w: metric is required", ErrInvalidSample)
	}
	if s.Service == models.WildcardService {
		return fmt.Errorf("%w: %q is not a service", ErrInvalidSample, s.Service)
	}
	return nil
}
