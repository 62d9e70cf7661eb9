package strategy

import (
	"sort"

	"taskdog/internal/task"
)

// OptimizationTaskSorter orders tasks before a greedy-family allocation
// run. Ported from the original task sorter referenced by the greedy
// base class: each strategy supplies its own comparator, all sharing
// the same stable-sort entry point.
type OptimizationTaskSorter struct {
	Less func(a, b *task.Task) bool
}

// Sort returns a stable-sorted copy of tasks.
func (s OptimizationTaskSorter) Sort(tasks []*task.Task) []*task.Task {
	out := make([]*task.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return s.Less(out[i], out[j])
	})
	return out
}

func priorityValue(t *task.Task) int {
	if t.Priority == nil {
		return 0
	}
	return *t.Priority
}

// byPriorityDescIDAsc implements Greedy/PriorityFirst's sort key:
// priority desc, id asc.
func byPriorityDescIDAsc(a, b *task.Task) bool {
	pa, pb := priorityValue(a), priorityValue(b)
	if pa != pb {
		return pa > pb
	}
	return a.ID < b.ID
}

// byDeadlineAscIDAsc implements EarliestDeadline's sort key: deadline
// asc (absent last), id asc.
func byDeadlineAscIDAsc(a, b *task.Task) bool {
	if cmp, ok := compareDeadlines(a, b); ok {
		return cmp
	}
	return a.ID < b.ID
}

// byDeadlineAscPriorityDescIDAsc implements DependencyAware's tiebreak
// comparator: deadline asc (absent last), priority desc, id asc.
func byDeadlineAscPriorityDescIDAsc(a, b *task.Task) bool {
	if a.Deadline == nil && b.Deadline == nil {
		pa, pb := priorityValue(a), priorityValue(b)
		if pa != pb {
			return pa > pb
		}
		return a.ID < b.ID
	}
	if a.Deadline == nil {
		return false
	}
	if b.Deadline == nil {
		return true
	}
	if !a.Deadline.Equal(*b.Deadline) {
		return a.Deadline.Before(*b.Deadline)
	}
	pa, pb := priorityValue(a), priorityValue(b)
	if pa != pb {
		return pa > pb
	}
	return a.ID < b.ID
}

// compareDeadlines returns (less, decided). decided is false when both
// tasks tie on deadline (including both absent) and the caller should
// fall through to its own tiebreaker.
func compareDeadlines(a, b *task.Task) (bool, bool) {
	if a.Deadline == nil && b.Deadline == nil {
		return false, false
	}
	if a.Deadline == nil {
		return false, true
	}
	if b.Deadline == nil {
		return true, true
	}
	if a.Deadline.Equal(*b.Deadline) {
		return false, false
	}
	return a.Deadline.Before(*b.Deadline), true
}

// byDeadlineDescIDAsc implements Backward's sort key: deadline desc
// (absent deadlines are given an effective deadline by the caller
// before sorting).
func byDeadlineDescIDAsc(a, b *task.Task) bool {
	if a.Deadline == nil && b.Deadline == nil {
		return a.ID < b.ID
	}
	if a.Deadline == nil {
		return true
	}
	if b.Deadline == nil {
		return false
	}
	if !a.Deadline.Equal(*b.Deadline) {
		return a.Deadline.After(*b.Deadline)
	}
	return a.ID < b.ID
}
