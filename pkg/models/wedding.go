package models

import "time"

// WeddingEvent is an entry from the external wedding calendar.
type WeddingEvent struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Date       time.Time `json:"date" yaml:"date"`
	Venue      string    `json:"venue,omitempty" yaml:"venue,omitempty"`
	GuestCount int       `json:"guest_count,omitempty" yaml:"guest_count,omitempty"`
}

// WeddingCalendarView is the read-only calendar collaborator.
type WeddingCalendarView interface {
	WeddingsInWindow(start, end time.Time) []WeddingEvent
	IsSaturdayPeakActive(now time.Time) bool
}
