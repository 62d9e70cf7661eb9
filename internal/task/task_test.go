package task

import (
	"testing"
	"time"
)

func mustNew(t *testing.T, fields Fields) *Task {
	t.Helper()
	tk, err := New(1, fields, time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tk
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New(1, Fields{Name: "   "}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for blank name")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestNewRejectsNonPositivePriority(t *testing.T) {
	bad := 0
	_, err := New(1, Fields{Name: "task", Priority: &bad}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for non-positive priority")
	}
}

func TestNewRejectsDuplicateTags(t *testing.T) {
	_, err := New(1, Fields{Name: "task", Tags: []string{"a", "a"}}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for duplicate tags")
	}
}

func TestNewRejectsPlannedStartAfterEnd(t *testing.T) {
	start := time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	_, err := New(1, Fields{Name: "task", PlannedStart: &start, PlannedEnd: &end}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for planned_start after planned_end")
	}
}

func TestNewDefaultsToPending(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task"})
	if tk.Status != StatusPending {
		t.Fatalf("expected default status Pending, got %s", tk.Status)
	}
}

func TestStartSetsActualStart(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task"})
	now := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)

	started, err := tk.Start(now, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Fatalf("expected InProgress, got %s", started.Status)
	}
	if started.ActualStart == nil || !started.ActualStart.Equal(now) {
		t.Fatalf("expected actual_start=%v, got %v", now, started.ActualStart)
	}
}

func TestStartDoesNotOverwriteExistingActualStart(t *testing.T) {
	earlier := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{Name: "task", Status: StatusInProgress, ActualStart: &earlier})

	later := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)
	started, err := tk.Start(later, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !started.ActualStart.Equal(earlier) {
		t.Fatalf("expected actual_start to remain %v, got %v", earlier, started.ActualStart)
	}
}

func TestStartFailsOnTerminalStatus(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task", Status: StatusCompleted})
	_, err := tk.Start(time.Now(), nil)
	if _, ok := err.(*ErrAlreadyFinished); !ok {
		t.Fatalf("expected *ErrAlreadyFinished, got %T (%v)", err, err)
	}
}

func TestStartFailsOnUnmetDependency(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task", DependsOn: []int{2, 3}})
	deps := map[int]*Task{
		2: mustNewWithID(t, 2, Fields{Name: "dep2", Status: StatusCompleted}),
	}
	_, err := tk.Start(time.Now(), deps)
	depErr, ok := err.(*DependencyNotMetError)
	if !ok {
		t.Fatalf("expected *DependencyNotMetError, got %T", err)
	}
	if len(depErr.UnmetIDs) != 1 || depErr.UnmetIDs[0] != 3 {
		t.Fatalf("expected unmet=[3], got %v", depErr.UnmetIDs)
	}
}

func TestStartSucceedsWhenAllDependenciesCompleted(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task", DependsOn: []int{2}})
	deps := map[int]*Task{
		2: mustNewWithID(t, 2, Fields{Name: "dep", Status: StatusCompleted}),
	}
	if _, err := tk.Start(time.Now(), deps); err != nil {
		t.Fatalf("expected Start to succeed, got %v", err)
	}
}

func mustNewWithID(t *testing.T, id int, fields Fields) *Task {
	t.Helper()
	tk, err := New(id, fields, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tk
}

func TestCompleteSetsActualEnd(t *testing.T) {
	started := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{Name: "task", Status: StatusInProgress, ActualStart: &started})

	now := time.Date(2025, 10, 21, 17, 0, 0, 0, time.UTC)
	done, err := tk.Complete(now)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %s", done.Status)
	}
	if done.ActualEnd == nil || !done.ActualEnd.Equal(now) {
		t.Fatalf("expected actual_end=%v, got %v", now, done.ActualEnd)
	}
	if done.ActualStart == nil || !done.ActualStart.Equal(started) {
		t.Fatal("expected actual_start to remain untouched")
	}
}

func TestCompleteFailsWhenNotStarted(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task"})
	_, err := tk.Complete(time.Now())
	if _, ok := err.(*ErrNotStarted); !ok {
		t.Fatalf("expected *ErrNotStarted, got %T", err)
	}
}

func TestCompleteFailsOnAlreadyFinished(t *testing.T) {
	tk := mustNew(t, Fields{Name: "task", Status: StatusCanceled})
	_, err := tk.Complete(time.Now())
	if _, ok := err.(*ErrAlreadyFinished); !ok {
		t.Fatalf("expected *ErrAlreadyFinished, got %T", err)
	}
}

func TestCancelSetsActualEnd(t *testing.T) {
	started := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{Name: "task", Status: StatusInProgress, ActualStart: &started})

	now := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)
	canceled, err := tk.Cancel(now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != StatusCanceled {
		t.Fatalf("expected Canceled, got %s", canceled.Status)
	}
	if canceled.ActualEnd == nil || !canceled.ActualEnd.Equal(now) {
		t.Fatal("expected actual_end to be set")
	}
}

func TestReopenRevertsToPendingWithoutClearingTimestamps(t *testing.T) {
	start := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{Name: "task", Status: StatusCompleted, ActualStart: &start, ActualEnd: &end})

	reopened, err := tk.Reopen(time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Status != StatusPending {
		t.Fatalf("expected Pending, got %s", reopened.Status)
	}
	if reopened.ActualStart == nil || !reopened.ActualStart.Equal(start) {
		t.Fatal("expected actual_start to be preserved")
	}
	if reopened.ActualEnd == nil || !reopened.ActualEnd.Equal(end) {
		t.Fatal("expected actual_end to be preserved")
	}
}

func TestActualDurationSumsLoggedHours(t *testing.T) {
	day1 := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{
		Name: "task",
		ActualDailyHours: map[time.Time]float64{
			day1: 3.5,
			day2: 2.0,
		},
	})
	if got := tk.ActualDuration(); got != 5.5 {
		t.Fatalf("expected 5.5, got %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	day := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	tk := mustNew(t, Fields{Name: "task", DailyAllocations: map[time.Time]float64{day: 2.0}, Tags: []string{"x"}})

	clone := tk.Clone()
	clone.DailyAllocations[day] = 99
	clone.Tags[0] = "y"

	if tk.DailyAllocations[day] != 2.0 {
		t.Fatal("expected original daily_allocations to be unaffected by clone mutation")
	}
	if tk.Tags[0] != "x" {
		t.Fatal("expected original tags to be unaffected by clone mutation")
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusCanceled.IsTerminal() {
		t.Fatal("Completed and Canceled must be terminal")
	}
	if StatusPending.IsTerminal() || StatusInProgress.IsTerminal() {
		t.Fatal("Pending and InProgress must not be terminal")
	}
}
