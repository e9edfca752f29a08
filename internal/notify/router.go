// Package notify delivers new, escalated and resolved alerts to the sinks
// configured for each alert level.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// Notification is what a sink receives.
type Notification struct {
	Type       models.EventType    `json:"type"`
	Alert      models.ScalingAlert `json:"alert"`
	Recipients []string            `json:"recipients,omitempty"`
	SentAt     time.Time           `json:"sent_at"`
}

type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Router maps alert levels to sinks.
type Router struct {
	sinks   map[string]Sink
	routes  map[models.Severity][]string
	timeout time.Duration
}

// NewRouter builds a router from a level -> sink names table such as
// {"emergency": ["log", "webhook", "redis"]}. Unknown levels or sink names
// are rejected.
func NewRouter(channels map[string][]string, timeout time.Duration, sinks ...Sink) (*Router, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := &Router{
		sinks:   make(map[string]Sink, len(sinks)),
		routes:  make(map[models.Severity][]string),
		timeout: timeout,
	}
	for _, s := range sinks {
		r.sinks[s.Name()] = s
	}

	var errs []error
	for level, names := range channels {
		sev, err := models.ParseSeverity(level)
		if err != nil || sev == models.SeverityNone {
			errs = append(errs, fmt.Errorf("notifications.channels: unknown level %q", level))
			continue
		}
		for _, name := range names {
			if _, ok := r.sinks[name]; !ok {
				errs = append(errs, fmt.Errorf("notifications.channels.%s: sink %q is not configured", level, name))
				continue
			}
			r.routes[sev] = append(r.routes[sev], name)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// SinksFor returns the sink names used for a level, sorted.
func (r *Router) SinksFor(level models.Severity) []string {
	out := append([]string(nil), r.routes[level]...)
	sort.Strings(out)
	return out
}

// Route sends n to every sink configured for the alert's level. Escalated
// alerts carry their recipients.
func (r *Router) Route(ctx context.Context, n Notification) error {
	names := r.routes[n.Alert.Level]
	if len(names) == 0 {
		return nil
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	if n.Type == models.EventTypeAlertEscalated && len(n.Recipients) == 0 {
		n.Recipients = n.Alert.EscalatedTo
	}

	var errs []error
	for _, name := range names {
		sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.sinks[name].Send(sendCtx, n)
		cancel()
		if err != nil {
			logger.WithAlert(n.Alert.Service, n.Alert.ID).WithError(err).Warnf("Notification via %s failed", name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Run routes alert events from the bus until ctx is done or the channel is
// closed. Only created, escalated and resolved alerts are delivered.
func (r *Router) Run(ctx context.Context, events <-chan *models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			n, ok := notificationFor(event)
			if !ok {
				continue
			}
			_ = r.Route(ctx, n)
		}
	}
}

// RoutedTypes lists the event types Run acts on.
func RoutedTypes() []models.EventType {
	return []models.EventType{
		models.EventTypeAlertCreated,
		models.EventTypeAlertEscalated,
		models.EventTypeAlertResolved,
	}
}

func notificationFor(event *models.Event) (Notification, bool) {
	switch event.Type {
	case models.EventTypeAlertCreated, models.EventTypeAlertEscalated, models.EventTypeAlertResolved:
	default:
		return Notification{}, false
	}
	alert, ok := event.Data.(models.ScalingAlert)
	if !ok {
		return Notification{}, false
	}
	return Notification{Type: event.Type, Alert: alert, SentAt: event.Timestamp}, true
}
