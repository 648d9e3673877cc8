package planner

import (
	"fmt"
	"sort"
	"time"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
)

const (
	defaultWindowStart = "09:00"
	defaultWindowEnd   = "12:00"

	// How far ahead EnforceSchedule scans for an availability window before
	// giving up and leaving the forced defaults in place.
	availabilityHorizonDays = 14

	dateLayout = "2006-01-02"
)

// NextBusinessDay returns today's date if it is a weekday, otherwise the
// following Monday.
func NextBusinessDay(today time.Time) time.Time {
	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		date = date.AddDate(0, 0, 1)
	}
	return date
}

// DefaultSchedule is the starting point before availability refinement.
func DefaultSchedule(today time.Time) plan.Schedule {
	return plan.Schedule{
		Date:        NextBusinessDay(today).Format(dateLayout),
		WindowStart: defaultWindowStart,
		WindowEnd:   defaultWindowEnd,
	}
}

// EnforceSchedule reconciles a plan schedule against the next-business-day
// floor and, when a subcontractor is assigned, its availability windows.
// It returns the corrected schedule plus one adjustment message per rule
// actually violated; an already-compliant schedule comes back unchanged.
func EnforceSchedule(s plan.Schedule, sub *domain.Subcontractor, today time.Time) (plan.Schedule, []string) {
	var adjustments []string

	floor := NextBusinessDay(today)
	date, err := time.ParseInLocation(dateLayout, s.Date, today.Location())
	if err != nil || date.Before(floor) {
		date = floor
		forced := date.Format(dateLayout)
		if s.Date != forced {
			adjustments = append(adjustments, fmt.Sprintf("Moved schedule date to next business day %s.", forced))
			s.Date = forced
		}
	}

	if sub == nil {
		return s, adjustments
	}

	windows := windowsOn(*sub, date)
	if len(windows) > 0 {
		if containingWindow(windows, s.WindowStart, s.WindowEnd) {
			return s, adjustments
		}
		earliest := windows[0]
		s.WindowStart = earliest.WindowStart
		s.WindowEnd = earliest.WindowEnd
		adjustments = append(adjustments, fmt.Sprintf("Aligned schedule window to subcontractor availability %s-%s.", s.WindowStart, s.WindowEnd))
		return s, adjustments
	}

	for offset := 1; offset <= availabilityHorizonDays; offset++ {
		candidate := date.AddDate(0, 0, offset)
		windows := windowsOn(*sub, candidate)
		if len(windows) == 0 {
			continue
		}
		s.Date = candidate.Format(dateLayout)
		s.WindowStart = windows[0].WindowStart
		s.WindowEnd = windows[0].WindowEnd
		adjustments = append(adjustments, fmt.Sprintf("Rescheduled to %s %s-%s, first date with subcontractor availability.", s.Date, s.WindowStart, s.WindowEnd))
		return s, adjustments
	}

	// No availability within the horizon: keep the forced date and window.
	return s, adjustments
}

// windowsOn returns the subcontractor's windows for the date's weekday,
// sorted by start time.
func windowsOn(sub domain.Subcontractor, date time.Time) []domain.AvailabilityWindow {
	var windows []domain.AvailabilityWindow
	for _, w := range sub.Availabilities {
		if w.DayOfWeek == int(date.Weekday()) {
			windows = append(windows, w)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		return minutesOfDay(windows[i].WindowStart) < minutesOfDay(windows[j].WindowStart)
	})
	return windows
}

// containingWindow reports whether any window fully contains [start, end],
// compared as minutes since midnight.
func containingWindow(windows []domain.AvailabilityWindow, start, end string) bool {
	reqStart, okStart := parseClock(start)
	reqEnd, okEnd := parseClock(end)
	if !okStart || !okEnd || reqStart >= reqEnd {
		return false
	}
	for _, w := range windows {
		if minutesOfDay(w.WindowStart) <= reqStart && reqEnd <= minutesOfDay(w.WindowEnd) {
			return true
		}
	}
	return false
}

func parseClock(hhmm string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func minutesOfDay(hhmm string) int {
	v, _ := parseClock(hhmm)
	return v
}
