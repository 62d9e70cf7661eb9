package allocation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestPrepareTaskForAllocationClearsPlan(t *testing.T) {
	start := mustDate(t, "2025-10-20")
	end := mustDate(t, "2025-10-21")
	dur := 6.0
	tk, _ := task.New(1, task.Fields{
		Name: "x", PlannedStart: &start, PlannedEnd: &end, EstimatedDuration: &dur,
		DailyAllocations: map[time.Time]float64{start: 6},
	}, time.Now())

	prepared := PrepareTaskForAllocation(tk)
	if prepared == nil {
		t.Fatal("expected a schedulable copy")
	}
	if prepared.PlannedStart != nil || prepared.PlannedEnd != nil || prepared.DailyAllocations != nil {
		t.Fatalf("expected plan fields cleared, got %+v", prepared)
	}
	if tk.PlannedStart == nil {
		t.Fatal("original task should be untouched")
	}
}

func TestPrepareTaskForAllocationReturnsNilForFixed(t *testing.T) {
	dur := 6.0
	tk, _ := task.New(1, task.Fields{Name: "x", EstimatedDuration: &dur, IsFixed: true}, time.Now())
	if PrepareTaskForAllocation(tk) != nil {
		t.Fatal("expected nil for fixed task")
	}
}

func TestPrepareTaskForAllocationReturnsNilWithoutEstimatedDuration(t *testing.T) {
	tk, _ := task.New(1, task.Fields{Name: "x"}, time.Now())
	if PrepareTaskForAllocation(tk) != nil {
		t.Fatal("expected nil without estimated_duration")
	}
}

func TestCalculateAvailableHoursClampsToMax(t *testing.T) {
	grid := Grid{mustDate(t, "2025-10-20"): 2.0}
	avail := CalculateAvailableHours(grid, mustDate(t, "2025-10-20"), 6.0, nil, 0)
	if avail != 4.0 {
		t.Fatalf("expected 4.0, got %v", avail)
	}
}

func TestCalculateAvailableHoursNeverNegative(t *testing.T) {
	grid := Grid{mustDate(t, "2025-10-20"): 10.0}
	avail := CalculateAvailableHours(grid, mustDate(t, "2025-10-20"), 6.0, nil, 0)
	if avail != 0 {
		t.Fatalf("expected 0, got %v", avail)
	}
}

func TestCalculateAvailableHoursClampsSameDayByCurrentTime(t *testing.T) {
	grid := Grid{}
	now := time.Date(2025, 10, 20, 16, 0, 0, 0, time.UTC) // 4pm
	endOfDay := 18 * time.Hour                            // 6pm
	avail := CalculateAvailableHours(grid, mustDate(t, "2025-10-20"), 6.0, &now, endOfDay)
	if avail != 2.0 {
		t.Fatalf("expected 2.0 remaining hours until end of day, got %v", avail)
	}
}

func TestCalculateAvailableHoursIgnoresCurrentTimeOnOtherDays(t *testing.T) {
	grid := Grid{}
	now := time.Date(2025, 10, 20, 16, 0, 0, 0, time.UTC)
	avail := CalculateAvailableHours(grid, mustDate(t, "2025-10-21"), 6.0, &now, 18*time.Hour)
	if avail != 6.0 {
		t.Fatalf("expected full 6.0 on a different day, got %v", avail)
	}
}

func TestSetPlannedTimes(t *testing.T) {
	dur := 6.0
	tk, _ := task.New(1, task.Fields{Name: "x", EstimatedDuration: &dur}, time.Now())

	first := mustDate(t, "2025-10-20")
	last := mustDate(t, "2025-10-21")
	allocations := map[time.Time]float64{first: 6, last: 6}

	SetPlannedTimes(tk, first, last, allocations, 9*time.Hour, 18*time.Hour)

	if tk.PlannedStart.Hour() != 9 {
		t.Fatalf("expected planned_start hour 9, got %d", tk.PlannedStart.Hour())
	}
	if tk.PlannedEnd.Hour() != 18 {
		t.Fatalf("expected planned_end hour 18, got %d", tk.PlannedEnd.Hour())
	}
	if len(tk.DailyAllocations) != 2 {
		t.Fatalf("expected 2 allocation entries, got %d", len(tk.DailyAllocations))
	}
}

func TestInitializeAllocationsSumsFixedTasks(t *testing.T) {
	day := mustDate(t, "2025-10-20")
	dur := 4.0
	fixed, _ := task.New(1, task.Fields{
		Name: "fixed", EstimatedDuration: &dur, IsFixed: true,
		DailyAllocations: map[time.Time]float64{day: 4},
	}, time.Now())

	grid := InitializeAllocations([]*task.Task{fixed})
	if grid[timeutil.StartOfDay(day)] != 4.0 {
		t.Fatalf("expected grid to seed 4.0 on %v, got %v", day, grid)
	}
}

func TestInitializeAllocationsMergesMultipleFixedTasks(t *testing.T) {
	day1 := mustDate(t, "2025-10-20")
	day2 := mustDate(t, "2025-10-21")
	dur := 4.0

	a, _ := task.New(1, task.Fields{
		Name: "a", EstimatedDuration: &dur, IsFixed: true,
		DailyAllocations: map[time.Time]float64{day1: 3, day2: 1},
	}, time.Now())
	b, _ := task.New(2, task.Fields{
		Name: "b", EstimatedDuration: &dur, IsFixed: true,
		DailyAllocations: map[time.Time]float64{day1: 2},
	}, time.Now())

	got := InitializeAllocations([]*task.Task{a, b})
	want := Grid{
		timeutil.StartOfDay(day1): 5,
		timeutil.StartOfDay(day2): 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("allocation grid mismatch (-want +got):\n%s", diff)
	}
}
