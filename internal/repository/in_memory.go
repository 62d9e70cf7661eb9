package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskdog/internal/logging"
	"taskdog/internal/task"
)

// InMemory is a slice/map-backed TaskRepository guarded by a
// sync.RWMutex. Used by unit tests.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[int]*task.Task
	order  []int
	nextID int
}

// NewInMemory constructs an empty InMemory repository.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[int]*task.Task),
		nextID: 1,
	}
}

// GetAll returns every task in insertion order.
func (r *InMemory) GetAll(ctx context.Context) ([]*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*task.Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out, nil
}

// GetByID returns the task with id or ErrNotFound.
func (r *InMemory) GetByID(ctx context.Context, id int) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, &task.ErrNotFound{ID: id}
	}
	return t.Clone(), nil
}

// GetByIDs returns a map id->task for every resolvable id.
func (r *InMemory) GetByIDs(ctx context.Context, ids []int) (map[int]*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]*task.Task, len(ids))
	for _, id := range ids {
		if t, ok := r.byID[id]; ok {
			out[id] = t.Clone()
		}
	}
	return out, nil
}

// Save persists t, refreshing UpdatedAt.
func (r *InMemory) Save(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.UpdatedAt = time.Now()
	if _, exists := r.byID[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t.Clone()
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	return nil
}

// SaveAll persists every task as an atomic batch.
func (r *InMemory) SaveAll(ctx context.Context, tasks []*task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, t := range tasks {
		t.UpdatedAt = now
		if _, exists := r.byID[t.ID]; !exists {
			r.order = append(r.order, t.ID)
		}
		r.byID[t.ID] = t.Clone()
		if t.ID >= r.nextID {
			r.nextID = t.ID + 1
		}
	}
	return nil
}

// Delete removes the task with id if present.
func (r *InMemory) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return nil
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// GenerateNextID returns max(id)+1, or 1 when empty.
func (r *InMemory) GenerateNextID(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.byID) == 0 {
		return 1, nil
	}
	max := 0
	for id := range r.byID {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

// Create assigns an id and timestamps, validates via task.New, and
// persists.
func (r *InMemory) Create(ctx context.Context, fields task.Fields) (*task.Task, error) {
	id, err := r.GenerateNextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t, err := task.New(id, fields, now)
	if err != nil {
		return nil, err
	}

	if err := r.Save(ctx, t); err != nil {
		return nil, err
	}
	logging.Repo("created task %d %q", t.ID, t.Name)
	return t, nil
}

// Reload is a no-op for InMemory since there is no separate read-through
// cache to invalidate beyond the map itself.
func (r *InMemory) Reload(ctx context.Context) error {
	return nil
}

// sortedIDs returns a stable, sorted copy of the tracked ids,
// independent of map iteration order.
func (r *InMemory) sortedIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
