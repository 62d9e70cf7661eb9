// Package audit defines the append-only AuditEvent record and the
// repository contract every controller write persists through before
// it reports success to its caller.
package audit

import (
	"context"
	"sync"
	"time"

	"taskdog/internal/logging"
)

// Event is the append-only audit record: every controller write,
// including ones that fail validation, is captured as one of these.
type Event struct {
	Timestamp    time.Time
	Operation    string
	ResourceType string
	ResourceID   *int
	ResourceName *string
	Success      bool
	ClientName   *string
	OldValues    map[string]interface{}
	NewValues    map[string]interface{}
	ErrorMessage *string
}

// Repository is the persistence contract for audit events. Implemented
// by InMemory (tests) and by the sqlite-backed store sharing the
// task repository's connection and audit_log table.
type Repository interface {
	// Append persists ev.
	Append(ctx context.Context, ev Event) error
	// List returns the most recent events, newest first, bounded by
	// limit (0 means no bound).
	List(ctx context.Context, limit int) ([]Event, error)
}

// InMemory is a slice-backed Repository guarded by a mutex, used by
// unit tests and any embedding that doesn't need durability.
type InMemory struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemory constructs an empty in-memory audit repository.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append appends ev.
func (r *InMemory) Append(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// List returns the most recent events, newest first.
func (r *InMemory) List(ctx context.Context, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.events[n-1-i]
	}
	return out, nil
}

// Sink wraps a Repository with the controller-facing contract: the
// write is synchronous (so it completes before the caller's response
// is produced) but a persistence failure is logged rather than
// surfaced, so an audit outage never blocks a successful mutation.
type Sink struct {
	repo Repository
}

// NewSink wraps repo. A nil repo makes Record a no-op, which is handy
// for tests that don't care about audit trails.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Record persists ev synchronously, logging (but swallowing) any
// failure.
func (s *Sink) Record(ctx context.Context, ev Event) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Append(ctx, ev); err != nil {
		logging.AuditError("failed to persist audit event op=%s resource_type=%s: %v", ev.Operation, ev.ResourceType, err)
	}
}
