package planner_test

import (
	"testing"
	"time"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
	"arborplan/internal/planner"
)

func TestNextBusinessDayWeekday(t *testing.T) {
	got := planner.NextBusinessDay(tuesday)
	if got.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("got %s", got.Format("2006-01-02"))
	}
}

func TestNextBusinessDayWeekend(t *testing.T) {
	saturday := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	got := planner.NextBusinessDay(saturday)
	if got.Format("2006-01-02") != "2026-09-07" {
		t.Fatalf("got %s", got.Format("2006-01-02"))
	}
	if got.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", got.Weekday())
	}
}

func TestEnforceSchedulePastDateMoved(t *testing.T) {
	s := plan.Schedule{Date: "2026-08-28", WindowStart: "09:00", WindowEnd: "12:00"}
	got, adjustments := planner.EnforceSchedule(s, nil, tuesday)
	if got.Date != "2026-09-01" {
		t.Fatalf("date: got %s", got.Date)
	}
	if len(adjustments) != 1 || adjustments[0] != "Moved schedule date to next business day 2026-09-01." {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestEnforceScheduleMalformedDate(t *testing.T) {
	s := plan.Schedule{Date: "soonish", WindowStart: "09:00", WindowEnd: "12:00"}
	got, adjustments := planner.EnforceSchedule(s, nil, tuesday)
	if got.Date != "2026-09-01" {
		t.Fatalf("date: got %s", got.Date)
	}
	if len(adjustments) != 1 {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestEnforceScheduleContainedWindowKept(t *testing.T) {
	sub := testReference().Subcontractors[1] // Tuesdays 12:00-16:30
	s := plan.Schedule{Date: "2026-09-01", WindowStart: "13:00", WindowEnd: "15:00"}
	got, adjustments := planner.EnforceSchedule(s, &sub, tuesday)
	if len(adjustments) != 0 {
		t.Fatalf("expected no adjustments, got %v", adjustments)
	}
	if got != s {
		t.Fatalf("schedule changed: %+v", got)
	}
}

func TestEnforceScheduleWindowAligned(t *testing.T) {
	sub := testReference().Subcontractors[1]
	s := plan.Schedule{Date: "2026-09-01", WindowStart: "08:00", WindowEnd: "10:00"}
	got, adjustments := planner.EnforceSchedule(s, &sub, tuesday)
	if got.WindowStart != "12:00" || got.WindowEnd != "16:30" {
		t.Fatalf("window: got %s-%s", got.WindowStart, got.WindowEnd)
	}
	if len(adjustments) != 1 || adjustments[0] != "Aligned schedule window to subcontractor availability 12:00-16:30." {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestEnforceScheduleForwardScan(t *testing.T) {
	sub := testReference().Subcontractors[0] // Mon, Wed, Fri
	s := plan.Schedule{Date: "2026-09-01", WindowStart: "09:00", WindowEnd: "12:00"}
	got, adjustments := planner.EnforceSchedule(s, &sub, tuesday)
	// Tuesday has no window; the next is Wednesday 2026-09-02 12:30-16:30.
	if got.Date != "2026-09-02" || got.WindowStart != "12:30" || got.WindowEnd != "16:30" {
		t.Fatalf("schedule: got %+v", got)
	}
	if len(adjustments) != 1 || adjustments[0] != "Rescheduled to 2026-09-02 12:30-16:30, first date with subcontractor availability." {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestEnforceScheduleNoAvailabilityInHorizon(t *testing.T) {
	sub := domain.Subcontractor{ID: "sub-empty", IsActive: true}
	s := plan.Schedule{Date: "2026-09-01", WindowStart: "09:00", WindowEnd: "12:00"}
	got, adjustments := planner.EnforceSchedule(s, &sub, tuesday)
	if got != s {
		t.Fatalf("schedule changed: %+v", got)
	}
	if len(adjustments) != 0 {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestEnforceScheduleIdempotent(t *testing.T) {
	sub := testReference().Subcontractors[0]
	s := plan.Schedule{Date: "2026-09-01", WindowStart: "09:00", WindowEnd: "12:00"}
	once, _ := planner.EnforceSchedule(s, &sub, tuesday)
	twice, adjustments := planner.EnforceSchedule(once, &sub, tuesday)
	if twice != once {
		t.Fatalf("second pass changed schedule: %+v vs %+v", twice, once)
	}
	if len(adjustments) != 0 {
		t.Fatalf("second pass produced adjustments: %v", adjustments)
	}
}
