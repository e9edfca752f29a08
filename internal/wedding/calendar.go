// Package wedding resolves wedding-calendar-aware scaling rules into
// modifiers for the policy engine.
package wedding

import (
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const (
	DefaultPeakStartHour = 8
	DefaultPeakEndHour   = 23
)

// Calendar is an in-memory WeddingCalendarView seeded from the rules file
// and replaced wholesale on reload.
type Calendar struct {
	mu            sync.RWMutex
	events        []models.WeddingEvent
	location      *time.Location
	peakStartHour int
	peakEndHour   int
}

type CalendarOption func(*Calendar)

func WithLocation(loc *time.Location) CalendarOption {
	return func(c *Calendar) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithPeakHours sets the Saturday peak window as [start, end) in hours.
func WithPeakHours(start, end int) CalendarOption {
	return func(c *Calendar) {
		c.peakStartHour = start
		c.peakEndHour = end
	}
}

func NewCalendar(events []models.WeddingEvent, opts ...CalendarOption) *Calendar {
	c := &Calendar{
		location:      time.UTC,
		peakStartHour: DefaultPeakStartHour,
		peakEndHour:   DefaultPeakEndHour,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Replace(events)
	return c
}

// Replace swaps the whole event list.
func (c *Calendar) Replace(events []models.WeddingEvent) {
	sorted := append([]models.WeddingEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	c.mu.Lock()
	c.events = sorted
	c.mu.Unlock()
}

func (c *Calendar) Events() []models.WeddingEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.WeddingEvent(nil), c.events...)
}

// WeddingsInWindow returns events with start <= date <= end.
func (c *Calendar) WeddingsInWindow(start, end time.Time) []models.WeddingEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	from := sort.Search(len(c.events), func(i int) bool {
		return !c.events[i].Date.Before(start)
	})
	var out []models.WeddingEvent
	for i := from; i < len(c.events) && !c.events[i].Date.After(end); i++ {
		out = append(out, c.events[i])
	}
	return out
}

// Location is the zone the calendar evaluates peak hours in.
func (c *Calendar) Location() *time.Location {
	return c.location
}

// PeakHours returns the Saturday peak window as [start, end) in hours.
func (c *Calendar) PeakHours() (start, end int) {
	return c.peakStartHour, c.peakEndHour
}

func (c *Calendar) IsSaturdayPeakActive(now time.Time) bool {
	local := now.In(c.location)
	if local.Weekday() != time.Saturday {
		return false
	}
	return local.Hour() >= c.peakStartHour && local.Hour() < c.peakEndHour
}
