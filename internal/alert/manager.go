package alert

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

var (
	ErrAlertNotFound   = errors.New("alert not found")
	ErrVersionConflict = errors.New("alert was modified concurrently")
)

const defaultResolvedRetention = 1000

// Publisher receives alert lifecycle events.
type Publisher interface {
	PublishAlert(eventType models.EventType, alert models.ScalingAlert)
}

// Manager owns the alert set. All mutations happen under one lock and bump
// the alert's Version, so callers holding a stale version get
// ErrVersionConflict instead of overwriting a concurrent change.
type Manager struct {
	mu                sync.RWMutex
	alerts            map[string]*models.ScalingAlert
	open              map[models.SeriesKey]string
	resolved          []string
	resolvedRetention int
	publisher         Publisher
	onSuppressed      func(models.MetricSample, string)
}

type Option func(*Manager)

func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithResolvedRetention bounds how many resolved alerts stay queryable.
func WithResolvedRetention(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.resolvedRetention = n
		}
	}
}

// WithSuppressionHook is called for every duplicate breach that was
// suppressed, with the id of the alert that absorbed it.
func WithSuppressionHook(fn func(models.MetricSample, string)) Option {
	return func(m *Manager) { m.onSuppressed = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		alerts:            make(map[string]*models.ScalingAlert),
		open:              make(map[models.SeriesKey]string),
		resolvedRetention: defaultResolvedRetention,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ingest evaluates the sample against thresholds and applies the resulting
// mutation.
func (m *Manager) Ingest(sample models.MetricSample, thresholds []models.AlertThreshold) models.AlertMutation {
	m.mu.Lock()
	mutation := Ingest(sample, thresholds, m.openFor(sample.Key()))
	if mutation.IsCreate() {
		a := mutation.Alert.Clone()
		m.alerts[a.ID] = &a
		m.open[sample.Key()] = a.ID
	}
	m.mu.Unlock()

	switch {
	case mutation.IsCreate():
		logger.WithAlert(sample.Service, mutation.Alert.ID).WithFields(map[string]interface{}{
			"level":  mutation.Alert.Level.String(),
			"metric": sample.Metric,
			"value":  sample.Value,
		}).Warn("Alert created")
		m.publish(models.EventTypeAlertCreated, *mutation.Alert)
	case mutation.Suppressed:
		logger.WithAlert(sample.Service, mutation.ExistingID).WithFields(map[string]interface{}{
			"metric": sample.Metric,
			"value":  sample.Value,
		}).Debug("Duplicate alert suppressed")
		if m.onSuppressed != nil {
			m.onSuppressed(sample, mutation.ExistingID)
		}
	}
	return mutation
}

func (m *Manager) openFor(key models.SeriesKey) []models.ScalingAlert {
	id, ok := m.open[key]
	if !ok {
		return nil
	}
	return []models.ScalingAlert{*m.alerts[id]}
}

// Acknowledge marks the alert acknowledged. expectedVersion 0 skips the
// version check. The bool result is false when the call was a no-op.
func (m *Manager) Acknowledge(id, actor string, now time.Time, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	return m.mutate(id, expectedVersion, models.EventTypeAlertAcknowledged, func(a *models.ScalingAlert) bool {
		return acknowledge(a, actor, now)
	})
}

func (m *Manager) Escalate(id string, recipients []string, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	return m.mutate(id, expectedVersion, models.EventTypeAlertEscalated, func(a *models.ScalingAlert) bool {
		return escalate(a, recipients)
	})
}

func (m *Manager) Resolve(id string, now time.Time, expectedVersion uint64) (models.ScalingAlert, bool, error) {
	return m.mutate(id, expectedVersion, models.EventTypeAlertResolved, func(a *models.ScalingAlert) bool {
		return resolve(a, now)
	})
}

func (m *Manager) mutate(id string, expectedVersion uint64, eventType models.EventType, apply func(*models.ScalingAlert) bool) (models.ScalingAlert, bool, error) {
	m.mu.Lock()
	current, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return models.ScalingAlert{}, false, ErrAlertNotFound
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		snapshot := current.Clone()
		m.mu.Unlock()
		return snapshot, false, ErrVersionConflict
	}

	next := current.Clone()
	if !apply(&next) {
		m.mu.Unlock()
		return next, false, nil
	}
	next.Version++
	m.alerts[id] = &next
	if next.Resolved {
		m.closeLocked(&next)
	}
	snapshot := next.Clone()
	m.mu.Unlock()

	logger.WithAlert(snapshot.Service, id).WithField("version", snapshot.Version).Infof("Alert %s", eventVerb(eventType))
	m.publish(eventType, snapshot)
	return snapshot, true, nil
}

func (m *Manager) closeLocked(a *models.ScalingAlert) {
	for key, openID := range m.open {
		if openID == a.ID {
			delete(m.open, key)
		}
	}
	m.resolved = append(m.resolved, a.ID)
	for len(m.resolved) > m.resolvedRetention {
		delete(m.alerts, m.resolved[0])
		m.resolved = m.resolved[1:]
	}
}

func (m *Manager) Get(id string) (models.ScalingAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return models.ScalingAlert{}, ErrAlertNotFound
	}
	return a.Clone(), nil
}

type Filter string

const (
	FilterOpen     Filter = "open"
	FilterResolved Filter = "resolved"
	FilterAll      Filter = "all"
)

// List returns copies of the matching alerts, newest first.
func (m *Manager) List(filter Filter) []models.ScalingAlert {
	m.mu.RLock()
	out := make([]models.ScalingAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		switch filter {
		case FilterOpen:
			if a.Resolved {
				continue
			}
		case FilterResolved:
			if !a.Resolved {
				continue
			}
		}
		out = append(out, a.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Open is shorthand for List(FilterOpen).
func (m *Manager) Open() []models.ScalingAlert {
	return m.List(FilterOpen)
}

func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}

// Restore loads previously persisted alerts, e.g. open alerts from the
// database at startup. Alerts already known are left alone, and at most one
// open alert per (service, metric) is kept.
func (m *Manager) Restore(alerts []models.ScalingAlert) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for _, a := range alerts {
		if _, exists := m.alerts[a.ID]; exists {
			continue
		}
		if a.Resolved {
			continue
		}
		key, ok := seriesKeyOf(a)
		if !ok {
			continue
		}
		if _, taken := m.open[key]; taken {
			continue
		}
		c := a.Clone()
		m.alerts[c.ID] = &c
		m.open[key] = c.ID
		restored++
	}
	return restored
}

func seriesKeyOf(a models.ScalingAlert) (models.SeriesKey, bool) {
	for metric := range a.Metadata.CurrentMetrics {
		return models.SeriesKey{Service: a.Service, Metric: models.MetricKind(metric)}, true
	}
	return models.SeriesKey{}, false
}

func (m *Manager) publish(eventType models.EventType, a models.ScalingAlert) {
	if m.publisher != nil {
		m.publisher.PublishAlert(eventType, a)
	}
}

func eventVerb(t models.EventType) string {
	switch t {
	case models.EventTypeAlertAcknowledged:
		return "acknowledged"
	case models.EventTypeAlertEscalated:
		return "escalated"
	case models.EventTypeAlertResolved:
		return "resolved"
	default:
		return string(t)
	}
}
