// Package analytics turns a flat set of sale records into period-scoped
// statistics. Everything here is a pure function of its inputs.
package analytics

import (
	"time"

	"mesapos/backend/internal/domain"
)

// FilterByPeriod keeps the records whose timestamp falls inside the window
// selected by sel, computed relative to now in now's location. Weeks run
// Monday 00:00:00.000 through Sunday 23:59:59.999. The result is unsorted.
func FilterByPeriod(records []domain.SaleRecord, sel domain.Selection, now time.Time) []domain.SaleRecord {
	filtered := make([]domain.SaleRecord, 0, len(records))
	if len(records) == 0 {
		return filtered
	}
	if sel.Period == domain.PeriodAll {
		return append(filtered, records...)
	}

	from, to, ok := Window(sel, now)
	if !ok {
		return filtered
	}
	lo, hi := from.UnixMilli(), to.UnixMilli()
	for _, record := range records {
		if record.Timestamp >= lo && record.Timestamp <= hi {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// Window returns the inclusive bounds of a bounded period. ok is false for
// PeriodAll, unknown periods, and custom selections missing a bound.
func Window(sel domain.Selection, now time.Time) (from time.Time, to time.Time, ok bool) {
	loc := now.Location()
	switch sel.Period {
	case domain.PeriodToday:
		return startOfDay(now), endOfDay(now), true
	case domain.PeriodWeek:
		weekday := int(now.Weekday())
		offset := weekday - 1
		if weekday == 0 {
			offset = 6
		}
		monday := time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, loc)
		sunday := time.Date(monday.Year(), monday.Month(), monday.Day()+6, 0, 0, 0, 0, loc)
		return monday, endOfDay(sunday), true
	case domain.PeriodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, loc)
		return first, endOfDay(last), true
	case domain.PeriodYear:
		first := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		last := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, loc)
		return first, endOfDay(last), true
	case domain.PeriodCustom:
		if sel.CustomStart == nil || sel.CustomEnd == nil {
			return time.Time{}, time.Time{}, false
		}
		return startOfDay(sel.CustomStart.In(loc)), endOfDay(sel.CustomEnd.In(loc)), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
