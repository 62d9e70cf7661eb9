// Package task defines the Task entity, its invariants, and its
// lifecycle state machine.
package task

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is one of the four lifecycle states a Task can be in.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCanceled   Status = "Canceled"
)

// IsTerminal reports whether s is a terminal status (Completed or
// Canceled).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Task is an immutable-by-convention record: every mutation produces a
// new, validated value rather than mutating the receiver in place.
type Task struct {
	ID        int
	Name      string
	Priority  *int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time

	PlannedStart *time.Time
	PlannedEnd   *time.Time
	Deadline     *time.Time

	ActualStart *time.Time
	ActualEnd   *time.Time

	EstimatedDuration *float64

	IsFixed    bool
	IsArchived bool

	DailyAllocations map[time.Time]float64
	ActualDailyHours map[time.Time]float64

	DependsOn []int
	Tags      []string
}

// Fields is the set of constructor/update inputs accepted when building
// or replacing a Task. Pointer fields left nil mean "unset": the built
// Task has that field absent, so passing nil to Replace clears it.
type Fields struct {
	Name              string
	Priority          *int
	Status            Status
	PlannedStart      *time.Time
	PlannedEnd        *time.Time
	Deadline          *time.Time
	ActualStart       *time.Time
	ActualEnd         *time.Time
	EstimatedDuration *float64
	IsFixed           bool
	IsArchived        bool
	DailyAllocations  map[time.Time]float64
	ActualDailyHours  map[time.Time]float64
	DependsOn         []int
	Tags              []string
}

// New constructs and validates a Task from id, timestamps, and fields.
// Construction is the only path through which invariants are checked;
// every mutation in this package rebuilds the value through New (or
// through Clone+field replacement followed by Validate) rather than
// mutating a Task in place.
func New(id int, fields Fields, now time.Time) (*Task, error) {
	status := fields.Status
	if status == "" {
		status = StatusPending
	}

	t := &Task{
		ID:                id,
		Name:              strings.TrimSpace(fields.Name),
		Priority:          fields.Priority,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
		PlannedStart:      fields.PlannedStart,
		PlannedEnd:        fields.PlannedEnd,
		Deadline:          fields.Deadline,
		ActualStart:       fields.ActualStart,
		ActualEnd:         fields.ActualEnd,
		EstimatedDuration: fields.EstimatedDuration,
		IsFixed:           fields.IsFixed,
		IsArchived:        fields.IsArchived,
		DailyAllocations:  copyFloatMap(fields.DailyAllocations),
		ActualDailyHours:  copyFloatMap(fields.ActualDailyHours),
		DependsOn:         copyIntSlice(fields.DependsOn),
		Tags:              copyStringSlice(fields.Tags),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Replace builds a new, fully-validated Task from fields, preserving
// t's ID and CreatedAt and refreshing UpdatedAt to now. Used by the
// update use-case so that every patch re-runs construction-time
// invariant checking rather than mutating t in place.
func (t *Task) Replace(fields Fields, now time.Time) (*Task, error) {
	status := fields.Status
	if status == "" {
		status = t.Status
	}

	replaced := &Task{
		ID:                t.ID,
		Name:              strings.TrimSpace(fields.Name),
		Priority:          fields.Priority,
		Status:            status,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         now,
		PlannedStart:      fields.PlannedStart,
		PlannedEnd:        fields.PlannedEnd,
		Deadline:          fields.Deadline,
		ActualStart:       fields.ActualStart,
		ActualEnd:         fields.ActualEnd,
		EstimatedDuration: fields.EstimatedDuration,
		IsFixed:           fields.IsFixed,
		IsArchived:        fields.IsArchived,
		DailyAllocations:  copyFloatMap(fields.DailyAllocations),
		ActualDailyHours:  copyFloatMap(fields.ActualDailyHours),
		DependsOn:         copyIntSlice(fields.DependsOn),
		Tags:              copyStringSlice(fields.Tags),
	}

	if err := replaced.Validate(); err != nil {
		return nil, err
	}
	return replaced, nil
}

// ToFields captures t's current values as a Fields, a convenient
// starting point for building the next Replace call from a partial
// patch.
func (t *Task) ToFields() Fields {
	return Fields{
		Name:              t.Name,
		Priority:          t.Priority,
		Status:            t.Status,
		PlannedStart:      t.PlannedStart,
		PlannedEnd:        t.PlannedEnd,
		Deadline:          t.Deadline,
		ActualStart:       t.ActualStart,
		ActualEnd:         t.ActualEnd,
		EstimatedDuration: t.EstimatedDuration,
		IsFixed:           t.IsFixed,
		IsArchived:        t.IsArchived,
		DailyAllocations:  t.DailyAllocations,
		ActualDailyHours:  t.ActualDailyHours,
		DependsOn:         t.DependsOn,
		Tags:              t.Tags,
	}
}

// Validate checks every invariant from the data model. It is called on
// every construction and on every field replacement.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must be non-empty after trimming"}
	}
	if t.Priority != nil && *t.Priority <= 0 {
		return &ValidationError{Field: "priority", Reason: "must be positive when present"}
	}
	if t.EstimatedDuration != nil && *t.EstimatedDuration <= 0 {
		return &ValidationError{Field: "estimated_duration", Reason: "must be positive when present"}
	}
	if err := validateTags(t.Tags); err != nil {
		return err
	}
	if t.PlannedStart != nil && t.PlannedEnd != nil && t.PlannedStart.After(*t.PlannedEnd) {
		return &ValidationError{Field: "planned_start", Reason: "must not be after planned_end"}
	}
	if t.ActualStart != nil && t.ActualEnd != nil && t.ActualStart.After(*t.ActualEnd) {
		return &ValidationError{Field: "actual_start", Reason: "must not be after actual_end"}
	}
	for d, h := range t.DailyAllocations {
		if h < 0 {
			return &ValidationError{Field: "daily_allocations", Reason: fmt.Sprintf("negative hours on %s", d.Format("2006-01-02"))}
		}
	}
	if err := validateDependsOn(t.DependsOn); err != nil {
		return err
	}
	return nil
}

func validateTags(tags []string) error {
	seen := make(map[string]bool, len(tags))
	for _, tg := range tags {
		if strings.TrimSpace(tg) == "" {
			return &ValidationError{Field: "tags", Reason: "tags must be non-empty"}
		}
		if seen[tg] {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("duplicate tag %q", tg)}
		}
		seen[tg] = true
	}
	return nil
}

func validateDependsOn(ids []int) error {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return &ValidationError{Field: "depends_on", Reason: fmt.Sprintf("duplicate dependency id %d", id)}
		}
		seen[id] = true
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t
	clone.DailyAllocations = copyFloatMap(t.DailyAllocations)
	clone.ActualDailyHours = copyFloatMap(t.ActualDailyHours)
	clone.DependsOn = copyIntSlice(t.DependsOn)
	clone.Tags = copyStringSlice(t.Tags)
	if t.Priority != nil {
		p := *t.Priority
		clone.Priority = &p
	}
	if t.PlannedStart != nil {
		v := *t.PlannedStart
		clone.PlannedStart = &v
	}
	if t.PlannedEnd != nil {
		v := *t.PlannedEnd
		clone.PlannedEnd = &v
	}
	if t.Deadline != nil {
		v := *t.Deadline
		clone.Deadline = &v
	}
	if t.ActualStart != nil {
		v := *t.ActualStart
		clone.ActualStart = &v
	}
	if t.ActualEnd != nil {
		v := *t.ActualEnd
		clone.ActualEnd = &v
	}
	if t.EstimatedDuration != nil {
		v := *t.EstimatedDuration
		clone.EstimatedDuration = &v
	}
	return &clone
}

// ActualDuration derives the total logged hours as the sum of
// ActualDailyHours.
func (t *Task) ActualDuration() float64 {
	var total float64
	for _, h := range t.ActualDailyHours {
		total += h
	}
	return total
}

// Start transitions the task to InProgress. Requires status to be
// Pending or InProgress, and every dependency to be resolved and
// Completed.
func (t *Task) Start(now time.Time, deps map[int]*Task) (*Task, error) {
	if t.Status != StatusPending && t.Status != StatusInProgress {
		return nil, &ErrAlreadyFinished{ID: t.ID, Status: t.Status}
	}

	if err := checkDependencies(t, deps); err != nil {
		return nil, err
	}

	clone := t.Clone()
	clone.Status = StatusInProgress
	if clone.ActualStart == nil {
		v := now
		clone.ActualStart = &v
	}
	clone.ActualEnd = nil
	clone.UpdatedAt = now
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return clone, nil
}

func checkDependencies(t *Task, deps map[int]*Task) error {
	if len(t.DependsOn) == 0 {
		return nil
	}
	var unmet []int
	for _, id := range t.DependsOn {
		dep, ok := deps[id]
		if !ok || dep.Status != StatusCompleted {
			unmet = append(unmet, id)
		}
	}
	if len(unmet) > 0 {
		sort.Ints(unmet)
		return &DependencyNotMetError{ID: t.ID, UnmetIDs: unmet}
	}
	return nil
}

// Complete transitions the task to Completed. Requires the task not be
// already finished and to have been started.
func (t *Task) Complete(now time.Time) (*Task, error) {
	if t.Status.IsTerminal() {
		return nil, &ErrAlreadyFinished{ID: t.ID, Status: t.Status}
	}
	if t.Status == StatusPending && t.ActualStart == nil {
		return nil, &ErrNotStarted{ID: t.ID}
	}

	clone := t.Clone()
	clone.Status = StatusCompleted
	v := now
	clone.ActualEnd = &v
	clone.UpdatedAt = now
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return clone, nil
}

// Cancel transitions the task to Canceled. Requires the task not be
// already finished.
func (t *Task) Cancel(now time.Time) (*Task, error) {
	if t.Status.IsTerminal() {
		return nil, &ErrAlreadyFinished{ID: t.ID, Status: t.Status}
	}
	if t.Status == StatusPending && t.ActualStart == nil {
		return nil, &ErrNotStarted{ID: t.ID}
	}

	clone := t.Clone()
	clone.Status = StatusCanceled
	v := now
	clone.ActualEnd = &v
	clone.UpdatedAt = now
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return clone, nil
}

// Reopen reverts status to Pending without clearing any timestamps.
// Called by the controller's Reopen use-case and by the update use-case
// when status is set back to Pending explicitly.
func (t *Task) Reopen(now time.Time) (*Task, error) {
	clone := t.Clone()
	clone.Status = StatusPending
	clone.UpdatedAt = now
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return clone, nil
}

func copyFloatMap(m map[time.Time]float64) map[time.Time]float64 {
	if m == nil {
		return nil
	}
	out := make(map[time.Time]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntSlice(s []int) []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func copyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
