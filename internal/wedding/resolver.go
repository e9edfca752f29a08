package wedding

import (
	"strconv"
	"strings"
	"time"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const defaultLeadTime = 24 * time.Hour

// Resolver turns wedding-aware rules into modifiers. The zero value uses the
// default season.
type Resolver struct {
	Season Season
}

func NewResolver(season Season) *Resolver {
	return &Resolver{Season: season}
}

// Resolve returns the rule's modifier when the rule is enabled and its
// condition currently holds.
func (r *Resolver) Resolve(rule models.WeddingAwareRule, now time.Time, calendar models.WeddingCalendarView) (models.Modifier, bool) {
	if !rule.Enabled || calendar == nil {
		return models.Modifier{}, false
	}

	var active bool
	switch rule.Condition {
	case models.RuleSaturdayPeak:
		active = r.saturdayPeak(rule.Parameters, now, calendar)
	case models.RuleWeddingSeason:
		active = r.weddingSeason(rule.Parameters, now, calendar)
	case models.RuleSpecificEvent:
		active = specificEvent(rule.Parameters, now, calendar)
	default:
		logger.WithField("rule", rule.Name).Warnf("Unknown wedding rule condition %q", rule.Condition)
	}
	if !active {
		return models.Modifier{}, false
	}
	return rule.ScalingModifier, true
}

// Compose resolves every rule and folds the active ones into one modifier:
// the largest multiplier, the largest priority boost and the most aggressive
// cooldown reduction. The names of the active rules are returned in order.
func (r *Resolver) Compose(rules []models.WeddingAwareRule, now time.Time, calendar models.WeddingCalendarView) (models.Modifier, []string) {
	combined := models.NeutralModifier()
	var active []string

	for _, rule := range rules {
		m, ok := r.Resolve(rule, now, calendar)
		if !ok {
			continue
		}
		if len(active) == 0 {
			combined = m
		} else {
			if m.CapacityMultiplier > combined.CapacityMultiplier {
				combined.CapacityMultiplier = m.CapacityMultiplier
			}
			if m.PriorityBoost > combined.PriorityBoost {
				combined.PriorityBoost = m.PriorityBoost
			}
			// The largest reduction gives the shortest cooldown.
			if m.CooldownReduction > combined.CooldownReduction {
				combined.CooldownReduction = m.CooldownReduction
			}
		}
		active = append(active, rule.Name)
	}

	return combined, active
}

// peakCalendar is implemented by calendars that expose their peak window,
// so it can be applied in a rule's own timezone.
type peakCalendar interface {
	Location() *time.Location
	PeakHours() (start, end int)
}

func (r *Resolver) saturdayPeak(p models.RuleParameters, now time.Time, calendar models.WeddingCalendarView) bool {
	pc, exposesPeak := calendar.(peakCalendar)

	local := now
	if exposesPeak && pc.Location() != nil {
		local = now.In(pc.Location())
	}
	if p.Timezone != "" {
		local = inZone(now, p.Timezone)
	}

	day := time.Saturday
	if p.DayOfWeek != nil {
		day = *p.DayOfWeek
	}
	if local.Weekday() != day {
		return false
	}

	switch {
	case p.TimeWindowStart != "" && p.TimeWindowEnd != "":
		if !withinClockWindow(local, p.TimeWindowStart, p.TimeWindowEnd) {
			return false
		}
	case day == time.Saturday && exposesPeak:
		start, end := pc.PeakHours()
		if local.Hour() < start || local.Hour() >= end {
			return false
		}
	case day == time.Saturday && p.Timezone != "":
		if local.Hour() < DefaultPeakStartHour || local.Hour() >= DefaultPeakEndHour {
			return false
		}
	case day == time.Saturday:
		if !calendar.IsSaturdayPeakActive(now) {
			return false
		}
	}

	if p.HoursBeforeWedding > 0 {
		horizon := now.Add(time.Duration(p.HoursBeforeWedding) * time.Hour)
		return len(calendar.WeddingsInWindow(now, horizon)) > 0
	}
	return true
}

func (r *Resolver) weddingSeason(p models.RuleParameters, now time.Time, calendar models.WeddingCalendarView) bool {
	season := r.Season
	if p.SeasonStartMonth != 0 && p.SeasonEndMonth != 0 {
		season = Season{StartMonth: p.SeasonStartMonth, EndMonth: p.SeasonEndMonth}
	}

	start, end, ok := season.Window(inZone(now, p.Timezone))
	if !ok {
		return false
	}
	return len(calendar.WeddingsInWindow(start, end)) >= p.WeddingCountThreshold
}

func specificEvent(p models.RuleParameters, now time.Time, calendar models.WeddingCalendarView) bool {
	lead := defaultLeadTime
	if p.LeadTimeHours > 0 {
		lead = time.Duration(p.LeadTimeHours) * time.Hour
	}

	for _, event := range calendar.WeddingsInWindow(now, now.Add(lead)) {
		if p.EventID != "" && event.ID == p.EventID {
			return true
		}
		if p.EventName != "" && strings.EqualFold(event.Name, p.EventName) {
			return true
		}
	}
	return false
}

func inZone(t time.Time, zone string) time.Time {
	if zone == "" {
		return t
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t
	}
	return t.In(loc)
}

// withinClockWindow checks local time against an "HH:MM" window. The start
// is inclusive, the end exclusive, and start > end wraps past midnight. An
// end of "24:00" runs to the end of the day.
func withinClockWindow(local time.Time, start, end string) bool {
	from, ok1 := parseClock(start)
	to, ok2 := parseClock(end)
	if !ok1 || !ok2 {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if from <= to {
		return minute >= from && minute < to
	}
	return minute >= from || minute < to
}

func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}
