package strategy

import (
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// maxForwardIterationDays bounds the greedy forward loop for
// deadline-less tasks. Termination is expected long before this bound
// in practice; it exists purely as a runaway-loop safety limit.
const maxForwardIterationDays = 36500

// allocateForward runs the shared greedy forward allocator for a
// single task, mutating grid in place on success and leaving it
// untouched on failure (partial allocations are rolled back before
// returning).
func allocateForward(t *task.Task, grid allocation.Grid, params allocation.Params) (*task.Task, string, bool) {
	prepared := allocation.PrepareTaskForAllocation(t)
	if prepared == nil {
		return nil, "task is fixed or missing estimated_duration", false
	}

	remaining := *prepared.EstimatedDuration
	cursor := params.StartDate
	var firstStamped, lastStamped *time.Time
	perTask := make(map[time.Time]float64)

	for i := 0; remaining > 1e-9 && i < maxForwardIterationDays; i++ {
		if !params.IncludeAllDays && !timeutil.IsWorkday(cursor, params.HolidayChecker) {
			cursor = cursor.AddDate(0, 0, 1)
			continue
		}

		if prepared.Deadline != nil && timeutil.StartOfDay(cursor).After(timeutil.StartOfDay(*prepared.Deadline)) {
			rollback(grid, perTask)
			return nil, "deadline infeasible", false
		}

		avail := allocation.CalculateAvailableHours(grid, cursor, params.MaxHoursPerDay, params.CurrentTime, params.DefaultEndTime)
		if avail > 0 {
			take := remaining
			if avail < take {
				take = avail
			}
			day := timeutil.StartOfDay(cursor)
			grid[day] += take
			perTask[day] += take
			remaining -= take

			c := cursor
			if firstStamped == nil {
				firstStamped = &c
			}
			lastStamped = &c
		}

		cursor = cursor.AddDate(0, 0, 1)
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

func rollback(grid allocation.Grid, perTask map[time.Time]float64) {
	for d, h := range perTask {
		grid[d] -= h
	}
}
