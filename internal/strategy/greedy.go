package strategy

import (
	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
)

// runForwardFamily sorts tasks with sorter and runs each through the
// shared greedy forward allocator in order, sharing a single grid.
// Used by Greedy, PriorityFirst, EarliestDeadline, and (after its own
// topological pre-pass) DependencyAware.
func runForwardFamily(name string, tasks []*task.Task, contextTasks []*task.Task, params allocation.Params, sorter OptimizationTaskSorter) Result {
	timer := logging.StartTimer(logging.CategoryScheduler, name)
	defer timer.Stop()

	ordered := sorter.Sort(tasks)
	result := runForwardOrder(ordered, contextTasks, params)

	logging.SchedulerDebug("%s: scheduled=%d failed=%d", name, len(result.Tasks), len(result.Failed))
	return result
}

// runForwardOrder runs the shared greedy forward allocator over tasks
// in the exact order given, without any further sorting. Used directly
// by the meta-heuristic strategies, which explore the space of
// orderings themselves.
func runForwardOrder(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	grid := allocation.InitializeAllocations(contextTasks)
	result := Result{DailyAllocations: grid}
	for _, t := range tasks {
		scheduled, reason, ok := allocateForward(t, grid, params)
		if !ok {
			result.Failed = append(result.Failed, Failure{Task: t, Reason: reason})
			continue
		}
		result.Tasks = append(result.Tasks, scheduled)
	}
	return result
}

// Greedy sorts by priority desc, id asc and runs the shared forward
// allocator.
type Greedy struct{}

func (g *Greedy) Name() string { return "greedy" }

func (g *Greedy) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	return runForwardFamily(g.Name(), tasks, contextTasks, params, OptimizationTaskSorter{Less: byPriorityDescIDAsc})
}
