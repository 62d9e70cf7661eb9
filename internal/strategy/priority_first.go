package strategy

import (
	"taskdog/internal/allocation"
	"taskdog/internal/task"
)

// PriorityFirst uses the same sort key as Greedy (priority desc, id
// asc); retained as a distinct strategy so callers can name it
// explicitly regardless of Greedy's default.
type PriorityFirst struct{}

func (p *PriorityFirst) Name() string { return "priority_first" }

func (p *PriorityFirst) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	return runForwardFamily(p.Name(), tasks, contextTasks, params, OptimizationTaskSorter{Less: byPriorityDescIDAsc})
}
