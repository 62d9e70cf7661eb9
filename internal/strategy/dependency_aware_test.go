package strategy

import (
	"testing"

	"taskdog/internal/task"
)

func TestDependencyAwareOrdersDependencyBeforeDependent(t *testing.T) {
	dependency := mustTask(t, 1, task.Fields{Name: "foundation", EstimatedDuration: hours(8)})
	dependent := mustTask(t, 2, task.Fields{Name: "builds on foundation", EstimatedDuration: hours(8), DependsOn: []int{1}})

	d := &DependencyAware{}
	result := d.Optimize([]*task.Task{dependent, dependency}, nil, testParams())

	dep := findTask(result, 1)
	dnt := findTask(result, 2)
	if dep == nil || dnt == nil {
		t.Fatalf("expected both tasks scheduled, failed=%+v", result.Failed)
	}
	if dep.PlannedStart.After(*dnt.PlannedStart) {
		t.Fatalf("dependency (id 1) must be allocated no later than its dependent (id 2)")
	}
}

func TestDependencyAwareDetectsCycle(t *testing.T) {
	a := mustTask(t, 1, task.Fields{Name: "a", EstimatedDuration: hours(8), DependsOn: []int{2}})
	b := mustTask(t, 2, task.Fields{Name: "b", EstimatedDuration: hours(8), DependsOn: []int{1}})

	d := &DependencyAware{}
	result := d.Optimize([]*task.Task{a, b}, nil, testParams())

	if len(result.Tasks) != 0 {
		t.Fatalf("expected no tasks scheduled in a 2-cycle, got %+v", result.Tasks)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected both cycle members recorded as failures, got %d", len(result.Failed))
	}
	for _, f := range result.Failed {
		if f.Reason != "dependency cycle" {
			t.Fatalf("reason = %q, want %q", f.Reason, "dependency cycle")
		}
	}
}

func TestDependencyAwareSchedulesIndependentTasksDespiteUnrelatedCycle(t *testing.T) {
	a := mustTask(t, 1, task.Fields{Name: "a", EstimatedDuration: hours(8), DependsOn: []int{2}})
	b := mustTask(t, 2, task.Fields{Name: "b", EstimatedDuration: hours(8), DependsOn: []int{1}})
	free := mustTask(t, 3, task.Fields{Name: "free", EstimatedDuration: hours(8)})

	d := &DependencyAware{}
	result := d.Optimize([]*task.Task{a, b, free}, nil, testParams())

	if findTask(result, 3) == nil {
		t.Fatal("expected the unrelated task to still be scheduled")
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected the 2 cycle members to fail, got %d", len(result.Failed))
	}
}
