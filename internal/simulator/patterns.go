package simulator

import (
	"math"
	"time"
)

// Pattern shapes a base load over time. Apply must be deterministic in at.
type Pattern interface {
	Apply(base float64, at time.Time) float64
	Name() string
}

// ParsePattern returns the named pattern, steady when unknown.
func ParsePattern(name string) Pattern {
	switch name {
	case "daily":
		return DailyPattern{}
	case "saturday":
		return SaturdayPattern{}
	case "seasonal":
		return SeasonalPattern{StartMonth: time.April, EndMonth: time.October}
	case "wedding":
		return Compose(DailyPattern{}, SaturdayPattern{}, SeasonalPattern{StartMonth: time.April, EndMonth: time.October})
	case "sine_wave":
		return SineWavePattern{}
	default:
		return SteadyPattern{}
	}
}

type SteadyPattern struct{}

func (SteadyPattern) Apply(base float64, _ time.Time) float64 { return base }
func (SteadyPattern) Name() string                             { return "steady" }

// DailyPattern follows couples planning in the evening and vendors working
// business hours; nights are quiet.
type DailyPattern struct{}

func (DailyPattern) Apply(base float64, at time.Time) float64 {
	hour := at.Hour()
	modifier := 1.0
	switch {
	case hour >= 19 && hour <= 22:
		modifier = 1.4
	case hour >= 9 && hour <= 17:
		modifier = 1.2
	case hour <= 6:
		modifier = 0.5
	}
	return base * modifier
}

func (DailyPattern) Name() string { return "daily" }

// SaturdayPattern raises load during Saturday ceremony hours, when guests
// upload photos and vendors check schedules.
type SaturdayPattern struct{}

func (SaturdayPattern) Apply(base float64, at time.Time) float64 {
	if at.Weekday() == time.Saturday && at.Hour() >= 8 && at.Hour() <= 23 {
		return base * 2.5
	}
	return base
}

func (SaturdayPattern) Name() string { return "saturday" }

// SeasonalPattern multiplies load inside the wedding season. The season may
// wrap the new year.
type SeasonalPattern struct {
	StartMonth time.Month
	EndMonth   time.Month
}

func (p SeasonalPattern) Apply(base float64, at time.Time) float64 {
	m := at.Month()
	in := m >= p.StartMonth && m <= p.EndMonth
	if p.StartMonth > p.EndMonth {
		in = m >= p.StartMonth || m <= p.EndMonth
	}
	if in {
		return base * 1.5
	}
	return base
}

func (SeasonalPattern) Name() string { return "seasonal" }

// SineWavePattern oscillates around the base by Amplitude percent.
type SineWavePattern struct {
	Period    time.Duration
	Amplitude float64
}

func (p SineWavePattern) Apply(base float64, at time.Time) float64 {
	period := p.Period
	if period <= 0 {
		period = 10 * time.Minute
	}
	amplitude := p.Amplitude
	if amplitude <= 0 {
		amplitude = 20
	}

	phase := float64(at.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds()) * 2 * math.Pi
	return base * (1 + math.Sin(phase)*amplitude/100)
}

func (SineWavePattern) Name() string { return "sine_wave" }

type composite []Pattern

// Compose applies patterns in order.
func Compose(patterns ...Pattern) Pattern {
	return composite(patterns)
}

func (c composite) Apply(base float64, at time.Time) float64 {
	for _, p := range c {
		base = p.Apply(base, at)
	}
	return base
}

func (c composite) Name() string { return "wedding" }
