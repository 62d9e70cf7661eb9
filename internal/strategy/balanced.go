package strategy

import (
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// defaultBalancedWindowDays is the effective deadline used when a task
// has none: startDate + 14 days, per the GLOSSARY's "effective
// deadline" entry.
const defaultBalancedWindowDays = 14

// Balanced spreads each task evenly across its workday window rather
// than front-loading it, falling through to the shared greedy
// allocator whenever an even spread can't fit within maxHoursPerDay.
type Balanced struct{}

func (b *Balanced) Name() string { return "balanced" }

func (b *Balanced) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	timer := logging.StartTimer(logging.CategoryScheduler, b.Name())
	defer timer.Stop()

	grid := allocation.InitializeAllocations(contextTasks)
	ordered := OptimizationTaskSorter{Less: byPriorityDescIDAsc}.Sort(tasks)

	result := Result{DailyAllocations: grid}
	for _, t := range ordered {
		scheduled, reason, ok := allocateBalanced(t, grid, params)
		if ok {
			result.Tasks = append(result.Tasks, scheduled)
			continue
		}
		if reason == "" {
			// Even spread didn't fit; fall through to the greedy allocator.
			scheduled, reason, ok = allocateForward(t, grid, params)
		}
		if !ok {
			result.Failed = append(result.Failed, Failure{Task: t, Reason: reason})
			continue
		}
		result.Tasks = append(result.Tasks, scheduled)
	}

	logging.SchedulerDebug("balanced: scheduled=%d failed=%d", len(result.Tasks), len(result.Failed))
	return result
}

// allocateBalanced attempts the even-spread plan. A false ok with an
// empty reason means "not infeasible, just didn't fit — try greedy";
// a false ok with a non-empty reason is a hard failure (unschedulable
// task).
func allocateBalanced(t *task.Task, grid allocation.Grid, params allocation.Params) (*task.Task, string, bool) {
	prepared := allocation.PrepareTaskForAllocation(t)
	if prepared == nil {
		return nil, "task is fixed or missing estimated_duration", false
	}

	effectiveDeadline := params.StartDate.AddDate(0, 0, defaultBalancedWindowDays)
	if prepared.Deadline != nil {
		effectiveDeadline = *prepared.Deadline
	}

	dates := timeutil.DateRange(params.StartDate, effectiveDeadline)
	workdays := dates
	if !params.IncludeAllDays {
		workdays = timeutil.Workdays(dates, params.HolidayChecker)
	}
	if len(workdays) == 0 {
		return nil, "", false
	}

	h := *prepared.EstimatedDuration / float64(len(workdays))
	if h > params.MaxHoursPerDay {
		h = params.MaxHoursPerDay
	}
	if h*float64(len(workdays)) < *prepared.EstimatedDuration-1e-9 {
		return nil, "", false
	}

	perTask := make(map[time.Time]float64, len(workdays))
	for _, d := range workdays {
		day := timeutil.StartOfDay(d)
		if grid[day]+h > params.MaxHoursPerDay+1e-9 {
			rollback(grid, perTask)
			return nil, "", false
		}
		grid[day] += h
		perTask[day] = h
	}

	allocation.SetPlannedTimes(prepared, workdays[0], workdays[len(workdays)-1], perTask, params.DefaultStartTime, params.DefaultEndTime)
	return prepared, "", true
}
