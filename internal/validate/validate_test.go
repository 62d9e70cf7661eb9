package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdog/internal/repository"
	"taskdog/internal/task"
)

func seedRepo(t *testing.T) repository.TaskRepository {
	t.Helper()
	repo := repository.NewInMemory()
	ctx := context.Background()
	_, err := repo.Create(ctx, task.Fields{Name: "root"})
	require.NoError(t, err)
	return repo
}

func TestValidateUnknownFieldPasses(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "notes", "anything", &task.Task{ID: 1}, seedRepo(t))
	assert.NoError(t, err)
}

func TestValidatePriorityRejectsNonPositive(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "priority", 0, &task.Task{ID: 1}, seedRepo(t))
	require.Error(t, err)
	var verr *task.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidatePriorityAllowsNilClear(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "priority", nil, &task.Task{ID: 1}, seedRepo(t))
	assert.NoError(t, err)
}

func TestValidateTagsRejectsBadPattern(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "tags", []string{"ok-tag", "bad tag"}, &task.Task{ID: 1}, seedRepo(t))
	require.Error(t, err)
}

func TestValidateTagsRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "tags", []string{"a", "a"}, &task.Task{ID: 1}, seedRepo(t))
	require.Error(t, err)
}

func TestValidateDependsOnRejectsMissingTarget(t *testing.T) {
	repo := seedRepo(t)
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "depends_on", []int{999}, &task.Task{ID: 1}, repo)
	require.Error(t, err)
}

func TestValidateDependsOnRejectsCycle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemory()

	a, err := repo.Create(ctx, task.Fields{Name: "a"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, task.Fields{Name: "b", DependsOn: []int{a.ID}})
	require.NoError(t, err)

	reg := NewRegistry()
	// Proposing that a depends on b would close a cycle a->b->a.
	err = reg.Validate(ctx, "depends_on", []int{b.ID}, a, repo)
	require.Error(t, err)
}

func TestValidateStatusRejectsUnknownValue(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "status", task.Status("Bogus"), &task.Task{ID: 1}, seedRepo(t))
	require.Error(t, err)
}

func TestValidateStatusAcceptsKnownValue(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate(context.Background(), "status", task.StatusInProgress, &task.Task{ID: 1}, seedRepo(t))
	assert.NoError(t, err)
}
