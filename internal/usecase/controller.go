// Package usecase implements the controller: the transactional
// load -> validate -> mutate -> save -> broadcast skeleton every
// mutating operation follows. It is the only caller of repository
// writes, the validator registry, and the broadcaster's Publish;
// nothing else in the core mutates a task.
package usecase

import (
	"context"
	"sync"
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/audit"
	"taskdog/internal/broadcast"
	"taskdog/internal/logging"
	"taskdog/internal/repository"
	"taskdog/internal/strategy"
	"taskdog/internal/task"
	"taskdog/internal/timeutil"
	"taskdog/internal/validate"
	"taskdog/internal/workload"
)

// Controller wraps the task repository together with the validator
// registry, broadcaster, and audit sink, serializing writes per task
// id. It is the sole in-scope mutation surface: the five CRUD
// use-cases, the four lifecycle transitions, archive/restore, and the
// optimize use-case that drives the scheduling core.
type Controller struct {
	repo        repository.TaskRepository
	broadcaster *broadcast.Broadcaster
	audit       *audit.Sink
	validators  *validate.Registry

	defaultStartTime time.Duration
	defaultEndTime   time.Duration
	holidays         timeutil.HolidayChecker

	createMu sync.Mutex
	locks    sync.Map // id -> *sync.Mutex
}

// New constructs a Controller. holidays may be nil (treated as "no
// holidays").
func New(
	repo repository.TaskRepository,
	broadcaster *broadcast.Broadcaster,
	auditSink *audit.Sink,
	validators *validate.Registry,
	defaultStartTime, defaultEndTime time.Duration,
	holidays timeutil.HolidayChecker,
) *Controller {
	return &Controller{
		repo:             repo,
		broadcaster:      broadcaster,
		audit:            auditSink,
		validators:       validators,
		defaultStartTime: defaultStartTime,
		defaultEndTime:   defaultEndTime,
		holidays:         holidays,
	}
}

func (c *Controller) lockFor(id int) *sync.Mutex {
	actual, _ := c.locks.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (c *Controller) recordAudit(ctx context.Context, operation string, id *int, name *string, oldValues, newValues map[string]interface{}, opErr error, sourceUser *string) {
	ev := audit.Event{
		Timestamp:    time.Now(),
		Operation:    operation,
		ResourceType: "task",
		ResourceID:   id,
		ResourceName: name,
		Success:      opErr == nil,
		ClientName:   sourceUser,
		OldValues:    oldValues,
		NewValues:    newValues,
	}
	if opErr != nil {
		msg := opErr.Error()
		ev.ErrorMessage = &msg
	}
	c.audit.Record(ctx, ev)
}

// Create validates and persists a brand-new task, then publishes
// TaskCreated.
func (c *Controller) Create(ctx context.Context, fields task.Fields, sourceUser *string) (*task.Task, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	t, err := c.repo.Create(ctx, fields)
	var id *int
	var name *string
	if t != nil {
		id, name = &t.ID, &t.Name
	} else {
		name = &fields.Name
	}
	c.recordAudit(ctx, "create_task", id, name, nil, fieldsSnapshot(fields), err, sourceUser)
	if err != nil {
		return nil, err
	}

	logging.Controller("created task %d %q", t.ID, t.Name)
	c.broadcaster.Publish(broadcast.NewTaskCreated(t, sourceUser))
	return t, nil
}

// Get returns the task with id, or task.ErrNotFound. Reads are
// lock-free against the write path.
func (c *Controller) Get(ctx context.Context, id int) (*task.Task, error) {
	return c.repo.GetByID(ctx, id)
}

// ListFilter captures the supported task-listing query parameters.
// Zero values mean "no constraint" except All, which defaults to
// "archived tasks excluded".
type ListFilter struct {
	All          bool
	Status       *task.Status
	Tags         []string
	StartDate    *time.Time
	EndDate      *time.Time
	Sort         string
	Reverse      bool
	IncludeGantt bool
}

// List returns every task matching filter, optionally attaching a
// display-oriented Gantt schedule (ActualSchedule) to tasks that carry
// a planned window but no stored daily allocations.
func (c *Controller) List(ctx context.Context, filter ListFilter) ([]*task.Task, error) {
	all, err := c.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if !filter.All && t.IsArchived {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if len(filter.Tags) > 0 && !hasAllTags(t.Tags, filter.Tags) {
			continue
		}
		if filter.StartDate != nil && t.Deadline != nil && t.Deadline.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && t.Deadline != nil && t.Deadline.After(*filter.EndDate) {
			continue
		}

		if filter.IncludeGantt && len(t.DailyAllocations) == 0 {
			if spread := workload.ActualSchedule(t, c.holidays); len(spread) > 0 {
				t.DailyAllocations = spread
			}
		}
		out = append(out, t)
	}

	sortTasks(out, filter.Sort, filter.Reverse)
	return out, nil
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// Delete hard-deletes the task with id, publishing TaskDeleted.
func (c *Controller) Delete(ctx context.Context, id int, sourceUser *string) error {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		c.recordAudit(ctx, "delete_task", &id, nil, nil, nil, err, sourceUser)
		return err
	}

	err = c.repo.Delete(ctx, id)
	c.recordAudit(ctx, "delete_task", &id, &existing.Name, taskSnapshot(existing), nil, err, sourceUser)
	if err != nil {
		return err
	}

	logging.Controller("deleted task %d %q", id, existing.Name)
	c.broadcaster.Publish(broadcast.NewTaskDeleted(id, existing.Name, sourceUser))
	return nil
}

func fieldsSnapshot(f task.Fields) map[string]interface{} {
	m := map[string]interface{}{"name": f.Name}
	if f.Priority != nil {
		m["priority"] = *f.Priority
	}
	if f.EstimatedDuration != nil {
		m["estimated_duration"] = *f.EstimatedDuration
	}
	if len(f.Tags) > 0 {
		m["tags"] = f.Tags
	}
	if len(f.DependsOn) > 0 {
		m["depends_on"] = f.DependsOn
	}
	return m
}

func taskSnapshot(t *task.Task) map[string]interface{} {
	return map[string]interface{}{
		"name":   t.Name,
		"status": string(t.Status),
	}
}

// allocationParams builds the Params the allocation/strategy packages
// need from the controller's configured defaults.
func (c *Controller) allocationParams(startDate time.Time, currentTime *time.Time, maxHoursPerDay float64, includeAllDays bool) allocation.Params {
	return allocation.Params{
		StartDate:        startDate,
		CurrentTime:      currentTime,
		MaxHoursPerDay:   maxHoursPerDay,
		HolidayChecker:   c.holidays,
		IncludeAllDays:   includeAllDays,
		DefaultStartTime: c.defaultStartTime,
		DefaultEndTime:   c.defaultEndTime,
	}
}

// OptimizeRequest is the input to a single optimization run.
type OptimizeRequest struct {
	Algorithm      string
	StartDate      time.Time
	MaxHoursPerDay float64
	ForceOverride  bool
	TaskIDs        []int
	IncludeAllDays bool
}

// Optimize runs the named strategy over the schedulable task set and
// persists the result, publishing ScheduleOptimized once.
// ForceOverride, when false, excludes fixed tasks and already-terminal
// tasks from the reschedule set but still counts their allocations as
// context capacity.
func (c *Controller) Optimize(ctx context.Context, req OptimizeRequest, sourceUser *string) (strategy.Result, error) {
	strat, err := strategy.Factory(req.Algorithm)
	if err != nil {
		return strategy.Result{}, err
	}

	all, err := c.repo.GetAll(ctx)
	if err != nil {
		return strategy.Result{}, err
	}

	var target, fixedContext []*task.Task
	wanted := toIDSet(req.TaskIDs)
	for _, t := range all {
		if t.IsArchived || t.Status.IsTerminal() {
			fixedContext = append(fixedContext, t)
			continue
		}
		if t.IsFixed {
			fixedContext = append(fixedContext, t)
			if !req.ForceOverride {
				continue
			}
		}
		if len(wanted) > 0 && !wanted[t.ID] {
			fixedContext = append(fixedContext, t)
			continue
		}
		target = append(target, t)
	}

	params := c.allocationParams(req.StartDate, nil, req.MaxHoursPerDay, req.IncludeAllDays)
	result := strat.Optimize(target, fixedContext, params)

	if len(result.Tasks) > 0 {
		if err := c.repo.SaveAll(ctx, result.Tasks); err != nil {
			return result, err
		}
	}

	logging.Scheduler("optimize(%s): scheduled=%d failed=%d", req.Algorithm, len(result.Tasks), len(result.Failed))
	c.recordAudit(ctx, "optimize_schedule", nil, nil, nil, map[string]interface{}{
		"algorithm":       req.Algorithm,
		"scheduled_count": len(result.Tasks),
		"failed_count":    len(result.Failed),
	}, nil, sourceUser)
	c.broadcaster.Publish(broadcast.NewScheduleOptimized(len(result.Tasks), len(result.Failed), req.Algorithm, sourceUser))

	return result, nil
}

// Update applies a partial patch to the task with id: every set field
// is validated (both by the field registry, which may consult other
// tasks, and by Task.Replace's invariant re-check), the task is
// rebuilt rather than mutated in place, and the result is persisted
// and broadcast with the list of field names that actually changed.
// A status field present in fields is delegated to the matching
// lifecycle transition rather than written directly, so dependency
// gating and actual-time stamping stay centralized in task.Task.
func (c *Controller) Update(ctx context.Context, id int, fields UpdateFields, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if fields.Status.Set && task.Status(fields.Status.Value) != existing.Status {
		return c.transitionStatus(ctx, existing, task.Status(fields.Status.Value), sourceUser)
	}

	now := time.Now()
	next := existing.ToFields()
	var changed []string
	name := existing.Name
	auditFailure := func(err error) (*task.Task, error) {
		c.recordAudit(ctx, "update_task", &id, &name, taskSnapshot(existing), nil, err, sourceUser)
		return nil, err
	}

	if fields.Name.Set {
		next.Name = fields.Name.Value
		changed = append(changed, "name")
	}
	if fields.Priority.Set {
		if err := c.validators.Validate(ctx, "priority", optionalIntValue(fields.Priority.Value), existing, c.repo); err != nil {
			return auditFailure(err)
		}
		next.Priority = fields.Priority.Value
		changed = append(changed, "priority")
	}
	if fields.PlannedStart.Set {
		next.PlannedStart = fields.PlannedStart.Value
		changed = append(changed, "planned_start")
	}
	if fields.PlannedEnd.Set {
		next.PlannedEnd = fields.PlannedEnd.Value
		changed = append(changed, "planned_end")
	}
	if fields.Deadline.Set {
		next.Deadline = fields.Deadline.Value
		changed = append(changed, "deadline")
	}
	if fields.EstimatedDuration.Set {
		if err := c.validators.Validate(ctx, "estimated_duration", optionalFloatValue(fields.EstimatedDuration.Value), existing, c.repo); err != nil {
			return auditFailure(err)
		}
		next.EstimatedDuration = fields.EstimatedDuration.Value
		changed = append(changed, "estimated_duration")
	}
	if fields.IsFixed.Set {
		next.IsFixed = fields.IsFixed.Value
		changed = append(changed, "is_fixed")
	}
	if fields.DependsOn.Set {
		if err := c.validators.Validate(ctx, "depends_on", fields.DependsOn.Value, existing, c.repo); err != nil {
			return auditFailure(err)
		}
		next.DependsOn = fields.DependsOn.Value
		changed = append(changed, "depends_on")
	}
	if fields.Tags.Set {
		if err := c.validators.Validate(ctx, "tags", fields.Tags.Value, existing, c.repo); err != nil {
			return auditFailure(err)
		}
		next.Tags = fields.Tags.Value
		changed = append(changed, "tags")
	}

	if len(changed) == 0 {
		return existing, nil
	}

	if fields.PlannedStart.Set || fields.PlannedEnd.Set || fields.EstimatedDuration.Set {
		if spread := recomputeAllocations(next, c.holidays); len(spread) > 0 {
			next.DailyAllocations = spread
		}
	}

	updated, err := existing.Replace(next, now)
	c.recordAudit(ctx, "update_task", &id, &name, taskSnapshot(existing), map[string]interface{}{"changed_fields": changed}, err, sourceUser)
	if err != nil {
		return nil, err
	}

	if err := c.repo.Save(ctx, updated); err != nil {
		return nil, err
	}

	logging.Controller("updated task %d fields=%v", id, changed)
	c.broadcaster.Publish(broadcast.NewTaskUpdated(updated, changed, sourceUser))
	return updated, nil
}

func optionalIntValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalFloatValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// recomputeAllocations rebuilds a simple calendar spread for display
// purposes after a schedule-affecting field changes; the allocation
// returned here is a placeholder until the next optimize run replaces
// it with a capacity-aware plan.
func recomputeAllocations(fields task.Fields, holidays timeutil.HolidayChecker) map[time.Time]float64 {
	if fields.PlannedStart == nil || fields.PlannedEnd == nil || fields.EstimatedDuration == nil {
		return nil
	}
	stub := &task.Task{PlannedStart: fields.PlannedStart, PlannedEnd: fields.PlannedEnd, EstimatedDuration: fields.EstimatedDuration}
	return workload.ActualSchedule(stub, holidays)
}

// transitionStatus delegates a status-field update to the matching
// lifecycle method so dependency gating and actual-time stamping are
// never bypassed by a direct field write.
func (c *Controller) transitionStatus(ctx context.Context, existing *task.Task, target task.Status, sourceUser *string) (*task.Task, error) {
	switch target {
	case task.StatusInProgress:
		return c.startLocked(ctx, existing, sourceUser)
	case task.StatusCompleted:
		return c.completeLocked(ctx, existing, sourceUser)
	case task.StatusCanceled:
		return c.cancelLocked(ctx, existing, sourceUser)
	case task.StatusPending:
		return c.reopenLocked(ctx, existing, sourceUser)
	default:
		return nil, &task.ValidationError{Field: "status", Reason: "unknown status " + string(target)}
	}
}

// Start transitions the task with id to InProgress, verifying every
// dependency is Completed first.
func (c *Controller) Start(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.startLocked(ctx, existing, sourceUser)
}

func (c *Controller) startLocked(ctx context.Context, existing *task.Task, sourceUser *string) (*task.Task, error) {
	deps, err := c.repo.GetByIDs(ctx, existing.DependsOn)
	if err != nil {
		return nil, err
	}
	updated, err := existing.Start(time.Now(), deps)
	return c.finishTransition(ctx, existing, updated, "start_task", err, sourceUser)
}

// Complete transitions the task with id to Completed.
func (c *Controller) Complete(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.completeLocked(ctx, existing, sourceUser)
}

func (c *Controller) completeLocked(ctx context.Context, existing *task.Task, sourceUser *string) (*task.Task, error) {
	updated, err := existing.Complete(time.Now())
	return c.finishTransition(ctx, existing, updated, "complete_task", err, sourceUser)
}

// Cancel transitions the task with id to Canceled.
func (c *Controller) Cancel(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.cancelLocked(ctx, existing, sourceUser)
}

func (c *Controller) cancelLocked(ctx context.Context, existing *task.Task, sourceUser *string) (*task.Task, error) {
	updated, err := existing.Cancel(time.Now())
	return c.finishTransition(ctx, existing, updated, "cancel_task", err, sourceUser)
}

// Reopen reverts the task with id to Pending.
func (c *Controller) Reopen(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.reopenLocked(ctx, existing, sourceUser)
}

func (c *Controller) reopenLocked(ctx context.Context, existing *task.Task, sourceUser *string) (*task.Task, error) {
	updated, err := existing.Reopen(time.Now())
	return c.finishTransition(ctx, existing, updated, "reopen_task", err, sourceUser)
}

func (c *Controller) finishTransition(ctx context.Context, existing, updated *task.Task, operation string, transitionErr error, sourceUser *string) (*task.Task, error) {
	name := existing.Name
	if transitionErr != nil {
		c.recordAudit(ctx, operation, &existing.ID, &name, taskSnapshot(existing), nil, transitionErr, sourceUser)
		return nil, transitionErr
	}

	if err := c.repo.Save(ctx, updated); err != nil {
		c.recordAudit(ctx, operation, &existing.ID, &name, taskSnapshot(existing), nil, err, sourceUser)
		return nil, err
	}

	c.recordAudit(ctx, operation, &existing.ID, &name, taskSnapshot(existing), taskSnapshot(updated), nil, sourceUser)
	logging.Controller("%s: task %d %s -> %s", operation, existing.ID, existing.Status, updated.Status)
	c.broadcaster.Publish(broadcast.NewTaskStatusChanged(updated, existing.Status, sourceUser))
	return updated, nil
}

// Archive marks the task with id archived, excluding it from List by
// default without deleting its history.
func (c *Controller) Archive(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	return c.setArchived(ctx, id, true, "archive_task", sourceUser)
}

// Restore clears the archived flag on the task with id.
func (c *Controller) Restore(ctx context.Context, id int, sourceUser *string) (*task.Task, error) {
	return c.setArchived(ctx, id, false, "restore_task", sourceUser)
}

func (c *Controller) setArchived(ctx context.Context, id int, archived bool, operation string, sourceUser *string) (*task.Task, error) {
	mu := c.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsArchived == archived {
		return existing, nil
	}

	next := existing.ToFields()
	next.IsArchived = archived
	updated, err := existing.Replace(next, time.Now())
	name := existing.Name
	c.recordAudit(ctx, operation, &id, &name, taskSnapshot(existing), taskSnapshot(existing), err, sourceUser)
	if err != nil {
		return nil, err
	}

	if err := c.repo.Save(ctx, updated); err != nil {
		return nil, err
	}

	logging.Controller("%s: task %d", operation, id)
	c.broadcaster.Publish(broadcast.NewTaskUpdated(updated, []string{"is_archived"}, sourceUser))
	return updated, nil
}

func toIDSet(ids []int) map[int]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
