package strategy

import (
	"taskdog/internal/allocation"
	"taskdog/internal/task"
)

// EarliestDeadline sorts by deadline asc (absent last), id asc, so
// that time-pressured tasks are allocated first regardless of
// priority.
type EarliestDeadline struct{}

func (e *EarliestDeadline) Name() string { return "earliest_deadline" }

func (e *EarliestDeadline) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	return runForwardFamily(e.Name(), tasks, contextTasks, params, OptimizationTaskSorter{Less: byDeadlineAscIDAsc})
}
