package models

import "time"

// MetricKind names a measured quantity, e.g. "cpu" or "requests".
type MetricKind string

const (
	MetricCPU          MetricKind = "cpu"
	MetricMemory       MetricKind = "memory"
	MetricRequests     MetricKind = "requests"
	MetricResponseTime MetricKind = "response_time"
	MetricQueueLength  MetricKind = "queue_length"
	MetricErrorRate    MetricKind = "error_rate"
)

// MetricSample is a single observation for one service. Immutable once created.
type MetricSample struct {
	Service   string     `json:"service" yaml:"service"`
	Metric    MetricKind `json:"metric" yaml:"metric"`
	Value     float64    `json:"value" yaml:"value"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
}

// SeriesKey identifies one (service, metric) history.
type SeriesKey struct {
	Service string     `json:"service"`
	Metric  MetricKind `json:"metric"`
}

func (s MetricSample) Key() SeriesKey {
	return SeriesKey{Service: s.Service, Metric: s.Metric}
}

func (k SeriesKey) String() string {
	return k.Service + "/" + string(k.Metric)
}
