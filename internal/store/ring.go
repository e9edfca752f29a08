package store

import "github.com/OldStager01/wedding-autoscaler/pkg/models"

// ring is a fixed-size FIFO; once full, each push evicts the oldest sample.
type ring struct {
	buf  []models.MetricSample
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]models.MetricSample, capacity)}
}

func (r *ring) push(s models.MetricSample) {
	idx := (r.head + r.size) % len(r.buf)
	r.buf[idx] = s
	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) newest() (models.MetricSample, bool) {
	if r.size == 0 {
		return models.MetricSample{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

func (r *ring) oldest() (models.MetricSample, bool) {
	if r.size == 0 {
		return models.MetricSample{}, false
	}
	return r.buf[r.head], true
}

func (r *ring) snapshot() []models.MetricSample {
	out := make([]models.MetricSample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
