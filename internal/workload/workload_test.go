package workload

import (
	"testing"
	"time"

	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func taskWithPeriod(t *testing.T, start, end string, hours float64) *task.Task {
	t.Helper()
	s := mustDate(t, start)
	e := mustDate(t, end)
	tk, err := task.New(1, task.Fields{Name: "x", PlannedStart: &s, PlannedEnd: &e, EstimatedDuration: &hours}, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tk
}

func TestWeekdayOnlySpreadsAcrossWeekdaysOnly(t *testing.T) {
	// Oct 20 2025 Monday .. Oct 26 2025 Sunday: 5 weekdays.
	tk := taskWithPeriod(t, "2025-10-20", "2025-10-26", 10.0)

	got := WeekdayOnly(tk, nil)
	if len(got) != 5 {
		t.Fatalf("expected 5 weekday entries, got %d: %v", len(got), got)
	}
	for d, h := range got {
		if timeutil.IsWeekend(d) {
			t.Errorf("unexpected weekend allocation on %v", d)
		}
		if h != 2.0 {
			t.Errorf("expected 2.0 hours per day, got %v", h)
		}
	}
}

func TestWeekdayOnlyEmptyWhenMissingFields(t *testing.T) {
	tk, err := task.New(1, task.Fields{Name: "x"}, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := WeekdayOnly(tk, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestActualScheduleFallsBackToAllDaysWhenAllWeekend(t *testing.T) {
	// Oct 25 2025 Saturday .. Oct 26 2025 Sunday: no weekdays at all.
	tk := taskWithPeriod(t, "2025-10-25", "2025-10-26", 4.0)

	got := ActualSchedule(tk, nil)
	if len(got) != 2 {
		t.Fatalf("expected fallback to 2 calendar days, got %d: %v", len(got), got)
	}
	for _, h := range got {
		if h != 2.0 {
			t.Errorf("expected 2.0 hours per day, got %v", h)
		}
	}
}

func TestActualScheduleHonorsWeekdaysWhenPresent(t *testing.T) {
	tk := taskWithPeriod(t, "2025-10-20", "2025-10-26", 10.0)
	got := ActualSchedule(tk, nil)
	if len(got) != 5 {
		t.Fatalf("expected 5 weekday entries when weekdays exist, got %d", len(got))
	}
}

func TestWeekdayOnlyRespectsHolidays(t *testing.T) {
	holidays := timeutil.NewStaticHolidaySet(mustDate(t, "2025-10-22"))
	tk := taskWithPeriod(t, "2025-10-20", "2025-10-24", 8.0)

	got := WeekdayOnly(tk, holidays)
	if len(got) != 4 {
		t.Fatalf("expected 4 entries (5 weekdays minus 1 holiday), got %d: %v", len(got), got)
	}
}
