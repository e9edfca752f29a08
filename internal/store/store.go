// Package store keeps a bounded, chronological sample history per
// (service, metric) pair.
package store

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const (
	DefaultCapacity = 720
	DefaultShards   = 16
)

// Store is safe for concurrent readers. Appends to the same key serialize on
// the owning shard's lock, so a single writer per key sees strictly
// increasing timestamps.
type Store struct {
	shards   []*shard
	capacity int
}

type shard struct {
	mu     sync.RWMutex
	series map[models.SeriesKey]*ring
}

func New(capacity, shards int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &Store{
		shards:   make([]*shard, shards),
		capacity: capacity,
	}
	for i := range s.shards {
		s.shards[i] = &shard{series: make(map[models.SeriesKey]*ring)}
	}
	return s
}

func (s *Store) shardFor(key models.SeriesKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.Service))
	h.Write([]byte{0})
	h.Write([]byte(key.Metric))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Append stores the sample and reports whether it was retained. Samples whose
// timestamp is not after the newest retained sample for the key are
// discarded; this drops both redelivered duplicates and late arrivals.
func (s *Store) Append(sample models.MetricSample) bool {
	key := sample.Key()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.series[key]
	if !ok {
		r = newRing(s.capacity)
		sh.series[key] = r
	}
	if newest, ok := r.newest(); ok && !sample.Timestamp.After(newest.Timestamp) {
		return false
	}
	r.push(sample)
	return true
}

func (s *Store) Latest(service string, metric models.MetricKind) (models.MetricSample, bool) {
	key := models.SeriesKey{Service: service, Metric: metric}
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.series[key]
	if !ok {
		return models.MetricSample{}, false
	}
	return r.newest()
}

// History returns a chronological copy of the retained samples.
func (s *Store) History(service string, metric models.MetricKind) []models.MetricSample {
	key := models.SeriesKey{Service: service, Metric: metric}
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.series[key]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Window returns retained samples with from <= timestamp <= to, oldest first.
func (s *Store) Window(service string, metric models.MetricKind, from, to time.Time) []models.MetricSample {
	history := s.History(service, metric)
	start := sort.Search(len(history), func(i int) bool {
		return !history[i].Timestamp.Before(from)
	})
	end := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp.After(to)
	})
	if start >= end {
		return nil
	}
	return history[start:end]
}

// Oldest returns the earliest retained sample for the key.
func (s *Store) Oldest(service string, metric models.MetricKind) (models.MetricSample, bool) {
	key := models.SeriesKey{Service: service, Metric: metric}
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.series[key]
	if !ok {
		return models.MetricSample{}, false
	}
	return r.oldest()
}

// Keys lists every series the store has seen, sorted for stable output.
func (s *Store) Keys() []models.SeriesKey {
	var keys []models.SeriesKey
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.series {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Metric < keys[j].Metric
	})
	return keys
}

func (s *Store) Len(service string, metric models.MetricKind) int {
	key := models.SeriesKey{Service: service, Metric: metric}
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if r, ok := sh.series[key]; ok {
		return r.size
	}
	return 0
}

func (s *Store) Capacity() int {
	return s.capacity
}
