// Package recurrence computes when a schedule is next due.
//
// Named frequencies use wall-clock calendar arithmetic, not elapsed-duration
// arithmetic: "daily" means the same wall time on the next calendar day even
// when a DST shift makes that interval 23 or 25 hours. This keeps recurring
// exports anchored to the time the user picked.
package recurrence

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/recordly/exportd/internal/domain"
)

// DefaultFallbackInterval is applied when a custom expression cannot be
// evaluated. A schedule must always have a next run, so an unparseable
// expression degrades to a flat 24h step rather than failing.
const DefaultFallbackInterval = 24 * time.Hour

var customParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Next returns the first run time strictly after from for the given
// frequency. Pure: no clock reads, no I/O.
func Next(freq domain.Frequency, customExpr string, from time.Time) time.Time {
	switch freq {
	case domain.FrequencyDaily:
		return addDays(from, 1)
	case domain.FrequencyWeekly:
		return addDays(from, 7)
	case domain.FrequencyMonthly:
		return addMonths(from, 1)
	case domain.FrequencyQuarterly:
		return addMonths(from, 3)
	case domain.FrequencyYearly:
		return addYears(from, 1)
	case domain.FrequencyCustom:
		return nextCustom(customExpr, from)
	default:
		return from.Add(DefaultFallbackInterval)
	}
}

func nextCustom(expr string, from time.Time) time.Time {
	sched, err := customParser.Parse(expr)
	if err != nil {
		return from.Add(DefaultFallbackInterval)
	}
	next := sched.Next(from)
	if next.IsZero() || !next.After(from) {
		return from.Add(DefaultFallbackInterval)
	}
	return next
}

// addDays steps forward by whole calendar days, preserving the wall time in
// from's location.
func addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+days, hh, mm, ss, t.Nanosecond(), t.Location())
}

// addMonths steps forward by calendar months, clamping the day-of-month to
// the last valid day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	targetMonth := int(m) + months
	targetYear := y + (targetMonth-1)/12
	targetMonth = (targetMonth-1)%12 + 1

	if max := daysIn(targetYear, time.Month(targetMonth)); d > max {
		d = max
	}
	return time.Date(targetYear, time.Month(targetMonth), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// addYears steps forward by calendar years; Feb 29 clamps to Feb 28 in
// non-leap target years.
func addYears(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	if max := daysIn(y+years, m); d > max {
		d = max
	}
	return time.Date(y+years, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidExpr reports whether a custom recurrence expression parses.
func ValidExpr(expr string) bool {
	_, err := customParser.Parse(expr)
	return err == nil
}
