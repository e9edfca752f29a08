package wedding

import "time"

// Season is an inclusive month range. Ranges that wrap the year end
// (e.g. November to February) are supported.
type Season struct {
	StartMonth time.Month
	EndMonth   time.Month
}

// DefaultSeason is the peak wedding season, April through October.
var DefaultSeason = Season{StartMonth: time.April, EndMonth: time.October}

func (s Season) normalized() Season {
	if s.StartMonth < time.January || s.StartMonth > time.December ||
		s.EndMonth < time.January || s.EndMonth > time.December {
		return DefaultSeason
	}
	return s
}

func (s Season) Contains(t time.Time) bool {
	s = s.normalized()
	m := t.Month()
	if s.StartMonth <= s.EndMonth {
		return m >= s.StartMonth && m <= s.EndMonth
	}
	return m >= s.StartMonth || m <= s.EndMonth
}

// Window returns the bounds of the season occurrence containing t. The second
// return value is false when t falls outside the season.
func (s Season) Window(t time.Time) (time.Time, time.Time, bool) {
	s = s.normalized()
	if !s.Contains(t) {
		return time.Time{}, time.Time{}, false
	}

	loc := t.Location()
	startYear, endYear := t.Year(), t.Year()
	if s.StartMonth > s.EndMonth {
		if t.Month() <= s.EndMonth {
			startYear--
		} else {
			endYear++
		}
	}

	start := time.Date(startYear, s.StartMonth, 1, 0, 0, 0, 0, loc)
	end := time.Date(endYear, s.EndMonth+1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	return start, end, true
}
