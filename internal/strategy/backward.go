package strategy

import (
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// defaultBackwardWindowDays is the effective deadline used when a task
// has none: startDate + 7 days.
const defaultBackwardWindowDays = 7

// Backward runs the allocator in reverse from each task's effective
// deadline, clustering work near deadlines ("just-in-time").
type Backward struct{}

func (b *Backward) Name() string { return "backward" }

func (b *Backward) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	timer := logging.StartTimer(logging.CategoryScheduler, b.Name())
	defer timer.Stop()

	withEffectiveDeadlines := make([]*task.Task, len(tasks))
	for i, t := range tasks {
		clone := t.Clone()
		if clone.Deadline == nil {
			eff := params.StartDate.AddDate(0, 0, defaultBackwardWindowDays)
			clone.Deadline = &eff
		}
		withEffectiveDeadlines[i] = clone
	}
	ordered := OptimizationTaskSorter{Less: byDeadlineDescIDAsc}.Sort(withEffectiveDeadlines)

	grid := allocation.InitializeAllocations(contextTasks)
	result := Result{DailyAllocations: grid}

	for _, t := range ordered {
		original := findByID(tasks, t.ID)
		scheduled, reason, ok := allocateBackward(t, grid, params)
		if !ok {
			result.Failed = append(result.Failed, Failure{Task: original, Reason: reason})
			continue
		}
		result.Tasks = append(result.Tasks, scheduled)
	}

	logging.SchedulerDebug("backward: scheduled=%d failed=%d", len(result.Tasks), len(result.Failed))
	return result
}

func findByID(tasks []*task.Task, id int) *task.Task {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func allocateBackward(t *task.Task, grid allocation.Grid, params allocation.Params) (*task.Task, string, bool) {
	prepared := allocation.PrepareTaskForAllocation(t)
	if prepared == nil {
		return nil, "task is fixed or missing estimated_duration", false
	}

	remaining := *prepared.EstimatedDuration
	cursor := *prepared.Deadline
	var firstStamped, lastStamped *time.Time
	perTask := make(map[time.Time]float64)

	for i := 0; remaining > 1e-9 && i < maxForwardIterationDays; i++ {
		if timeutil.StartOfDay(cursor).Before(timeutil.StartOfDay(params.StartDate)) {
			rollback(grid, perTask)
			return nil, "cannot fit before start date", false
		}

		if !params.IncludeAllDays && !timeutil.IsWorkday(cursor, params.HolidayChecker) {
			cursor = cursor.AddDate(0, 0, -1)
			continue
		}

		day := timeutil.StartOfDay(cursor)
		avail := params.MaxHoursPerDay - grid[day]
		if avail > 0 {
			take := remaining
			if avail < take {
				take = avail
			}
			grid[day] += take
			perTask[day] += take
			remaining -= take

			c := cursor
			if lastStamped == nil {
				lastStamped = &c
			}
			firstStamped = &c
		}

		cursor = cursor.AddDate(0, 0, -1)
	}

	if remaining > 1e-9 {
		rollback(grid, perTask)
		return nil, "exceeded safety iteration limit", false
	}
	if firstStamped == nil {
		return nil, "no capacity available", false
	}

	allocation.SetPlannedTimes(prepared, *firstStamped, *lastStamped, perTask, params.DefaultStartTime, params.DefaultEndTime)
	return prepared, "", true
}
