package usecase

import (
	"sort"
	"time"

	"taskdog/internal/task"
)

// sortTasks orders tasks in place by key ("priority", "deadline",
// "created_at", "name"; default "created_at"), reversing the order
// when reverse is true. Unknown keys fall back to the default.
func sortTasks(tasks []*task.Task, key string, reverse bool) {
	less := func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch key {
		case "priority":
			return priorityValue(a) < priorityValue(b)
		case "deadline":
			return deadlineValue(a).Before(deadlineValue(b))
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	if reverse {
		sort.SliceStable(tasks, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(tasks, less)
}

func priorityValue(t *task.Task) int {
	if t.Priority == nil {
		return 0
	}
	return *t.Priority
}

func deadlineValue(t *task.Task) time.Time {
	if t.Deadline == nil {
		return time.Unix(1<<62, 0)
	}
	return *t.Deadline
}
