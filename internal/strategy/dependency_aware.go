package strategy

import (
	"sort"

	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
)

// DependencyAware sorts by deadline asc (absent last), priority desc,
// id asc, and additionally performs a topological pre-pass (Kahn's
// algorithm, using the same comparator as tiebreaker) so a task never
// precedes a task it depends on. Cycle members are recorded as
// failures with reason "dependency cycle" and the remainder is still
// scheduled.
type DependencyAware struct{}

func (d *DependencyAware) Name() string { return "dependency_aware" }

func (d *DependencyAware) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	ordered, cycleMembers := topologicalOrder(tasks)

	result := runForwardFamily(d.Name(), ordered, contextTasks, params, OptimizationTaskSorter{Less: noopLess})
	for _, t := range cycleMembers {
		result.Failed = append(result.Failed, Failure{Task: t, Reason: "dependency cycle"})
	}
	logging.SchedulerDebug("dependency_aware: %d tasks removed for cycle", len(cycleMembers))
	return result
}

// noopLess preserves the order topologicalOrder already produced;
// runForwardFamily's stable sort over an already-correct order is a
// no-op when Less never reports strict precedence beyond equality.
func noopLess(a, b *task.Task) bool { return false }

// topologicalOrder runs Kahn's algorithm over tasks' DependsOn edges
// (restricted to ids present in tasks), using
// byDeadlineAscPriorityDescIDAsc as the tiebreaker among tasks with
// equal in-degree. Returns the linear order plus any tasks that could
// not be placed due to a cycle.
func topologicalOrder(tasks []*task.Task) ([]*task.Task, []*task.Task) {
	byID := make(map[int]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	inDegree := make(map[int]int, len(tasks))
	dependents := make(map[int][]int, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = 0
	}
	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			if _, ok := byID[depID]; !ok {
				continue // dependency outside this batch; not this pass's concern
			}
			inDegree[t.ID]++
			dependents[depID] = append(dependents[depID], t.ID)
		}
	}

	var available []*task.Task
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			available = append(available, t)
		}
	}

	var ordered []*task.Task
	placed := make(map[int]bool, len(tasks))
	for len(available) > 0 {
		sort.SliceStable(available, func(i, j int) bool {
			return byDeadlineAscPriorityDescIDAsc(available[i], available[j])
		})
		next := available[0]
		available = available[1:]
		ordered = append(ordered, next)
		placed[next.ID] = true

		for _, depID := range dependents[next.ID] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				available = append(available, byID[depID])
			}
		}
	}

	if len(ordered) == len(tasks) {
		return ordered, nil
	}

	var cycleMembers []*task.Task
	for _, t := range tasks {
		if !placed[t.ID] {
			cycleMembers = append(cycleMembers, t)
		}
	}
	sort.Slice(cycleMembers, func(i, j int) bool { return cycleMembers[i].ID < cycleMembers[j].ID })
	return ordered, cycleMembers
}
