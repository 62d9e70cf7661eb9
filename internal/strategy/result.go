// Package strategy implements the nine optimization strategies and the
// shared greedy forward allocator they are built on.
package strategy

import (
	"taskdog/internal/allocation"
	"taskdog/internal/task"
)

// Failure records why a task could not be scheduled.
type Failure struct {
	Task   *task.Task
	Reason string
}

// Result is the outcome of running a Strategy over a set of tasks.
type Result struct {
	Tasks            []*task.Task
	Failed           []Failure
	DailyAllocations allocation.Grid
}

// ScheduledCount returns the number of successfully scheduled tasks.
func (r Result) ScheduledCount() int { return len(r.Tasks) }

// FailedCount returns the number of tasks that could not be scheduled.
func (r Result) FailedCount() int { return len(r.Failed) }
