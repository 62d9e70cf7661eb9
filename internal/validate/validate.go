// Package validate implements the per-field validator registry invoked
// by the update use-case before a mutated task is persisted. Unknown
// field names pass without validation; known validators reject the
// value with a *task.ValidationError.
package validate

import (
	"context"
	"fmt"
	"regexp"

	"taskdog/internal/repository"
	"taskdog/internal/task"
)

// Validator checks a single field's proposed value against the task's
// current state and (when the check needs to look at other records,
// e.g. dependency existence) the repository. It returns nil on
// success and a *task.ValidationError otherwise.
type Validator func(ctx context.Context, value interface{}, current *task.Task, repo repository.TaskRepository) error

// Registry is a field-name-keyed dispatch table. Constructed once via
// NewRegistry and shared by every controller instance.
type Registry struct {
	validators map[string]Validator
}

// NewRegistry builds the registry with every known field validator
// wired in: status value (one of the four known statuses; transition
// rules and dependency gating are enforced by the task lifecycle
// methods), the two numeric fields, dependency existence/acyclicity,
// and tag shape. Fields absent from the table
// pass without validation.
func NewRegistry() *Registry {
	return &Registry{
		validators: map[string]Validator{
			"status":             validateStatus,
			"priority":           validateNumeric("priority"),
			"estimated_duration": validateNumeric("estimated_duration"),
			"depends_on":         validateDependsOn,
			"tags":               validateTags,
		},
	}
}

// Validate runs the validator registered for field, if any. Unknown
// fields return nil.
func (r *Registry) Validate(ctx context.Context, field string, value interface{}, current *task.Task, repo repository.TaskRepository) error {
	v, ok := r.validators[field]
	if !ok {
		return nil
	}
	return v(ctx, value, current, repo)
}

func validateStatus(ctx context.Context, value interface{}, current *task.Task, repo repository.TaskRepository) error {
	s, ok := value.(task.Status)
	if !ok {
		return &task.ValidationError{Field: "status", Reason: fmt.Sprintf("unrecognized value type %T", value)}
	}
	switch s {
	case task.StatusPending, task.StatusInProgress, task.StatusCompleted, task.StatusCanceled:
		return nil
	default:
		return &task.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
}

// validateNumeric returns a Validator for priority/estimated_duration:
// nil clears the field, otherwise the value must be a positive int or
// float64.
func validateNumeric(field string) Validator {
	return func(ctx context.Context, value interface{}, current *task.Task, repo repository.TaskRepository) error {
		if value == nil {
			return nil
		}
		switch v := value.(type) {
		case int:
			if v <= 0 {
				return &task.ValidationError{Field: field, Reason: "must be positive"}
			}
		case float64:
			if v <= 0 {
				return &task.ValidationError{Field: field, Reason: "must be positive"}
			}
		default:
			return &task.ValidationError{Field: field, Reason: fmt.Sprintf("must be numeric, got %T", value)}
		}
		return nil
	}
}

// validateDependsOn checks every referenced id resolves to an existing
// task and that accepting depends_on as given would not introduce a
// dependency cycle through the existing task graph.
func validateDependsOn(ctx context.Context, value interface{}, current *task.Task, repo repository.TaskRepository) error {
	ids, ok := value.([]int)
	if !ok {
		return &task.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("must be a list of ids, got %T", value)}
	}
	if len(ids) == 0 {
		return nil
	}

	resolved, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return &task.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("lookup failed: %v", err)}
	}
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			return &task.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("task %d does not exist", id)}
		}
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		return &task.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("lookup failed: %v", err)}
	}
	graph := make(map[int][]int, len(all))
	for _, t := range all {
		graph[t.ID] = t.DependsOn
	}
	graph[current.ID] = ids

	if cycle := findCycle(current.ID, graph); cycle != nil {
		return &task.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("would introduce a dependency cycle: %v", cycle)}
	}
	return nil
}

// findCycle runs a DFS from start looking for a path back to start.
// Returns the cycle members (in traversal order) or nil.
func findCycle(start int, graph map[int][]int) []int {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[int]int)
	var path []int

	var visit func(int) []int
	visit = func(id int) []int {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			cut := 0
			for i, p := range path {
				if p == id {
					cut = i
					break
				}
			}
			cycle := append([]int{}, path[cut:]...)
			return append(cycle, id)
		}
		state[id] = visiting
		path = append(path, id)
		for _, dep := range graph[id] {
			if c := visit(dep); c != nil {
				return c
			}
		}
		path = path[:len(path)-1]
		state[id] = visited
		return nil
	}

	return visit(start)
}

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateTags checks the proposed tag list is non-empty-per-tag,
// pairwise distinct, and each tag matches [A-Za-z0-9_-]+.
func validateTags(ctx context.Context, value interface{}, current *task.Task, repo repository.TaskRepository) error {
	tags, ok := value.([]string)
	if !ok {
		return &task.ValidationError{Field: "tags", Reason: fmt.Sprintf("must be a list of strings, got %T", value)}
	}
	seen := make(map[string]bool, len(tags))
	for _, tg := range tags {
		if tg == "" {
			return &task.ValidationError{Field: "tags", Reason: "tags must be non-empty"}
		}
		if !tagPattern.MatchString(tg) {
			return &task.ValidationError{Field: "tags", Reason: fmt.Sprintf("tag %q must match [A-Za-z0-9_-]+", tg)}
		}
		if seen[tg] {
			return &task.ValidationError{Field: "tags", Reason: fmt.Sprintf("duplicate tag %q", tg)}
		}
		seen[tg] = true
	}
	return nil
}
