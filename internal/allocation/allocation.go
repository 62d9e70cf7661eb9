// Package allocation provides the primitives shared by every
// optimization strategy: preparing a task for (re)scheduling,
// computing remaining daily capacity, and stamping the result of an
// allocation run back onto a task.
package allocation

import (
	"time"

	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// Params bundles every input the allocator needs, avoiding a long
// individually-threaded argument list across the strategy family.
type Params struct {
	StartDate        time.Time
	CurrentTime      *time.Time
	MaxHoursPerDay   float64
	HolidayChecker   timeutil.HolidayChecker
	IncludeAllDays   bool
	DefaultStartTime time.Duration // offset from midnight
	DefaultEndTime   time.Duration // offset from midnight
}

// Grid is the date->hours mapping owned by a single optimization run.
type Grid map[time.Time]float64

// InitializeAllocations sums every context task's DailyAllocations
// into a fresh grid, seeding it with fixed bookings and any
// previously scheduled (non-reschedulable) work.
func InitializeAllocations(contextTasks []*task.Task) Grid {
	grid := make(Grid)
	for _, t := range contextTasks {
		for d, h := range t.DailyAllocations {
			grid[timeutil.StartOfDay(d)] += h
		}
	}
	return grid
}

// PrepareTaskForAllocation returns a copy of t with PlannedStart,
// PlannedEnd, and DailyAllocations cleared, ready for the allocator to
// stamp a fresh plan. Returns nil if t is fixed or has no
// EstimatedDuration — both make it unschedulable.
func PrepareTaskForAllocation(t *task.Task) *task.Task {
	if t.IsFixed || t.EstimatedDuration == nil {
		return nil
	}
	clone := t.Clone()
	clone.PlannedStart = nil
	clone.PlannedEnd = nil
	clone.DailyAllocations = nil
	return clone
}

// CalculateAvailableHours returns maxHoursPerDay - grid[date], clamped
// to >= 0. When date is the same calendar date as currentTime, the
// result is further clamped by the wall-clock hours remaining until
// defaultEndTime so same-day allocations never exceed the remaining
// workday.
func CalculateAvailableHours(grid Grid, date time.Time, maxHoursPerDay float64, currentTime *time.Time, defaultEndTime time.Duration) float64 {
	date = timeutil.StartOfDay(date)
	avail := maxHoursPerDay - grid[date]
	if avail < 0 {
		avail = 0
	}

	if currentTime != nil && timeutil.SameDate(date, *currentTime) {
		endOfDay := timeutil.StartOfDay(*currentTime).Add(defaultEndTime)
		remaining := endOfDay.Sub(*currentTime).Hours()
		if remaining < 0 {
			remaining = 0
		}
		if remaining < avail {
			avail = remaining
		}
	}

	return avail
}

// SetPlannedTimes stamps PlannedStart/PlannedEnd using the configured
// start/end-of-day offsets, and assigns DailyAllocations.
func SetPlannedTimes(t *task.Task, firstDate, lastDate time.Time, allocations map[time.Time]float64, defaultStartTime, defaultEndTime time.Duration) {
	start := timeutil.StartOfDay(firstDate).Add(defaultStartTime)
	end := timeutil.StartOfDay(lastDate).Add(defaultEndTime)
	t.PlannedStart = &start
	t.PlannedEnd = &end
	t.DailyAllocations = allocations
}
