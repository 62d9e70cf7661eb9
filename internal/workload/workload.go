// Package workload computes date->hours spreads for a task's planned
// period. These are pure functions with no side effects.
package workload

import (
	"time"

	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// WeekdayOnly spreads task.EstimatedDuration evenly across the
// weekdays (optionally minus holidays) between PlannedStart and
// PlannedEnd inclusive. Used during optimization so generated plans
// never imply weekend work. Returns an empty map if PlannedStart,
// PlannedEnd, or EstimatedDuration is absent.
func WeekdayOnly(t *task.Task, holidays timeutil.HolidayChecker) map[time.Time]float64 {
	if t.PlannedStart == nil || t.PlannedEnd == nil || t.EstimatedDuration == nil {
		return map[time.Time]float64{}
	}

	dates := timeutil.DateRange(*t.PlannedStart, *t.PlannedEnd)
	workdays := timeutil.Workdays(dates, holidays)
	return spreadEvenly(workdays, *t.EstimatedDuration)
}

// ActualSchedule spreads task.EstimatedDuration across weekdays as
// WeekdayOnly does, but falls back to spreading across every calendar
// day in the period when the retained weekday set is empty (the whole
// period falls on weekends/holidays). Used for display so manually
// scheduled weekend work is honoured.
func ActualSchedule(t *task.Task, holidays timeutil.HolidayChecker) map[time.Time]float64 {
	if t.PlannedStart == nil || t.PlannedEnd == nil || t.EstimatedDuration == nil {
		return map[time.Time]float64{}
	}

	dates := timeutil.DateRange(*t.PlannedStart, *t.PlannedEnd)
	workdays := timeutil.Workdays(dates, holidays)
	if len(workdays) > 0 {
		return spreadEvenly(workdays, *t.EstimatedDuration)
	}
	return spreadEvenly(dates, *t.EstimatedDuration)
}

func spreadEvenly(dates []time.Time, totalHours float64) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(dates))
	if len(dates) == 0 {
		return out
	}
	per := totalHours / float64(len(dates))
	for _, d := range dates {
		out[timeutil.StartOfDay(d)] = per
	}
	return out
}
