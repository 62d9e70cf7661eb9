package repository

import (
	"context"
	"testing"
	"time"

	"taskdog/internal/task"
)

func TestInMemoryCreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()

	t1, err := repo.Create(ctx, task.Fields{Name: "first"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t2, err := repo.Create(ctx, task.Fields{Name: "second"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if t1.ID != 1 || t2.ID != 2 {
		t.Fatalf("expected ids 1,2 got %d,%d", t1.ID, t2.ID)
	}
}

func TestInMemoryGetAllPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()
	names := []string{"alpha", "beta", "gamma"}
	for _, n := range names {
		if _, err := repo.Create(ctx, task.Fields{Name: n}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	for i, n := range names {
		if all[i].Name != n {
			t.Errorf("position %d: expected %s, got %s", i, n, all[i].Name)
		}
	}
}

func TestInMemoryGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()

	_, err := repo.GetByID(ctx, 999)
	if _, ok := err.(*task.ErrNotFound); !ok {
		t.Fatalf("expected *task.ErrNotFound, got %T", err)
	}
}

func TestInMemoryGetByIDsOmitsMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()
	created, _ := repo.Create(ctx, task.Fields{Name: "only"})

	got, err := repo.GetByIDs(ctx, []int{created.ID, 999})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 resolved id, got %d", len(got))
	}
	if _, ok := got[999]; ok {
		t.Fatal("expected id 999 to be omitted, not present with nil")
	}
}

func TestInMemoryDeleteIsSilentOnMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()
	if err := repo.Delete(ctx, 404); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestInMemorySaveAllIsAtomicOnSuccess(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()

	t1, _ := task.New(1, task.Fields{Name: "a"}, time.Now())
	t2, _ := task.New(2, task.Fields{Name: "b"}, time.Now())

	if err := repo.SaveAll(ctx, []*task.Task{t1, t2}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	all, _ := repo.GetAll(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks after SaveAll, got %d", len(all))
	}
}

func TestInMemoryRoundTripPreservesFields(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemory()

	prio := 5
	dur := 8.0
	created, err := repo.Create(ctx, task.Fields{
		Name:              "round trip",
		Priority:          &prio,
		EstimatedDuration: &dur,
		Tags:              []string{"x", "y"},
		DependsOn:         []int{},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fetched, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Name != "round trip" || *fetched.Priority != 5 || *fetched.EstimatedDuration != 8.0 {
		t.Fatalf("round trip mismatch: %+v", fetched)
	}
	if len(fetched.Tags) != 2 || fetched.Tags[0] != "x" || fetched.Tags[1] != "y" {
		t.Fatalf("expected tags preserved in order, got %v", fetched.Tags)
	}
}
