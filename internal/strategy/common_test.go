package strategy

import (
	"testing"
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/task"
)

// monday is a fixed Monday used as the allocation start date across the
// package's tests, so weekend-skip behaviour is exercised deterministically.
var monday = time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)

func testParams() allocation.Params {
	return allocation.Params{
		StartDate:        monday,
		MaxHoursPerDay:   8,
		IncludeAllDays:   false,
		DefaultStartTime: 9 * time.Hour,
		DefaultEndTime:   17 * time.Hour,
	}
}

func mustTask(t *testing.T, id int, fields task.Fields) *task.Task {
	t.Helper()
	tk, err := task.New(id, fields, monday)
	if err != nil {
		t.Fatalf("task.New(%d): %v", id, err)
	}
	return tk
}

func hours(h float64) *float64 { return &h }

func priority(p int) *int { return &p }

func deadlineAt(offsetDays int) *time.Time {
	d := monday.AddDate(0, 0, offsetDays)
	return &d
}

func sumAllocations(t *task.Task) float64 {
	var total float64
	for _, h := range t.DailyAllocations {
		total += h
	}
	return total
}

func findTask(result Result, id int) *task.Task {
	for _, t := range result.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func findFailure(result Result, id int) *Failure {
	for i, f := range result.Failed {
		if f.Task.ID == id {
			return &result.Failed[i]
		}
	}
	return nil
}
