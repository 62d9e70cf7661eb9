// Package broadcast fans mutation events out to every connected
// WebSocket client, plus the synthetic schedule_optimized system
// event. Delivery is decoupled from the caller by an internal
// dispatch goroutine, and from each other by a per-client buffered
// queue so one slow client never stalls the rest.
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"taskdog/internal/logging"
	"taskdog/internal/task"
)

// EventType names one of the five mutation events or the one system
// event the broadcaster understands.
type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskDeleted       EventType = "task_deleted"
	EventTaskStatusChanged EventType = "task_status_changed"
	EventTaskNotesUpdated  EventType = "task_notes_updated"
	EventScheduleOptimized EventType = "schedule_optimized"
)

// Event is the payload enqueued for delivery. Fields not relevant to
// Type are left zero and omitted from the wire envelope.
type Event struct {
	Type     EventType
	TaskID   int
	TaskName string

	UpdatedFields []string
	OldStatus     string
	NewStatus     string

	ScheduledCount int
	FailedCount    int
	Algorithm      string

	SourceUserName *string
}

// envelope is the wire shape delivered to clients: a flat JSON object
// keyed by "type", the task identifiers, event-specific fields, and
// the attributing source_user_name.
func (e Event) envelope() map[string]interface{} {
	m := map[string]interface{}{
		"type":             string(e.Type),
		"source_user_name": e.SourceUserName,
	}
	if e.TaskID != 0 {
		m["task_id"] = e.TaskID
	}
	if e.TaskName != "" {
		m["task_name"] = e.TaskName
	}
	switch e.Type {
	case EventTaskUpdated:
		m["updated_fields"] = e.UpdatedFields
	case EventTaskStatusChanged:
		m["old_status"] = e.OldStatus
		m["new_status"] = e.NewStatus
	case EventScheduleOptimized:
		m["scheduled_count"] = e.ScheduledCount
		m["failed_count"] = e.FailedCount
		m["algorithm"] = e.Algorithm
	}
	return m
}

// NewTaskCreated builds the event published after a successful create.
func NewTaskCreated(t *task.Task, sourceUser *string) Event {
	return Event{Type: EventTaskCreated, TaskID: t.ID, TaskName: t.Name, SourceUserName: sourceUser}
}

// NewTaskUpdated builds the event published after a field-level update,
// naming every field that changed.
func NewTaskUpdated(t *task.Task, updatedFields []string, sourceUser *string) Event {
	return Event{Type: EventTaskUpdated, TaskID: t.ID, TaskName: t.Name, UpdatedFields: updatedFields, SourceUserName: sourceUser}
}

// NewTaskDeleted builds the event published after a hard delete. The
// task no longer exists by the time this is constructed, so name/id
// are carried explicitly rather than read off a *task.Task.
func NewTaskDeleted(id int, name string, sourceUser *string) Event {
	return Event{Type: EventTaskDeleted, TaskID: id, TaskName: name, SourceUserName: sourceUser}
}

// NewTaskStatusChanged builds the event published by the lifecycle
// transitions (start/complete/cancel/reopen).
func NewTaskStatusChanged(t *task.Task, oldStatus task.Status, sourceUser *string) Event {
	return Event{
		Type:           EventTaskStatusChanged,
		TaskID:         t.ID,
		TaskName:       t.Name,
		OldStatus:      string(oldStatus),
		NewStatus:      string(t.Status),
		SourceUserName: sourceUser,
	}
}

// NewTaskNotesUpdated builds the event published when a task's notes
// change. Notes themselves are owned by a separate collaborator, not
// this core; this event exists so that collaborator can announce its
// own changes over the same fan-out.
func NewTaskNotesUpdated(t *task.Task, sourceUser *string) Event {
	return Event{Type: EventTaskNotesUpdated, TaskID: t.ID, TaskName: t.Name, SourceUserName: sourceUser}
}

// NewScheduleOptimized builds the system event published once per
// optimization run.
func NewScheduleOptimized(scheduledCount, failedCount int, algorithm string, sourceUser *string) Event {
	return Event{
		Type:           EventScheduleOptimized,
		ScheduledCount: scheduledCount,
		FailedCount:    failedCount,
		Algorithm:      algorithm,
		SourceUserName: sourceUser,
	}
}

// clientQueueCapacity bounds each client's pending-message queue.
// Overflow drops the oldest queued message rather than blocking the
// dispatch loop.
const clientQueueCapacity = 64

// Client is anything the broadcaster can hand an encoded envelope to.
// Enqueue must never block; Close releases whatever resources the
// implementation holds.
type Client interface {
	ID() string
	Enqueue(data []byte)
	Close()
}

// Conn is the subset of *websocket.Conn a WSClient depends on.
// Accepting the interface rather than the concrete type lets tests
// substitute an in-memory fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WSClient adapts a websocket connection to Client: a buffered
// outbound queue drained by a dedicated goroutine, so a slow socket
// write never stalls the broadcaster's dispatch loop or other
// clients.
type WSClient struct {
	id     string
	conn   Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewWSClient wraps conn with a freshly generated client id.
func NewWSClient(conn Conn) *WSClient {
	c := &WSClient{id: uuid.New().String(), conn: conn, outbox: make(chan []byte, clientQueueCapacity), done: make(chan struct{})}
	go c.writeLoop()
	return c
}

// ID returns the client's generated identifier.
func (c *WSClient) ID() string { return c.id }

func (c *WSClient) writeLoop() {
	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logging.BroadcastWarn("client %s write failed, evicting: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Enqueue appends msg to the client's queue, dropping the oldest
// pending message first if the queue is full.
func (c *WSClient) Enqueue(msg []byte) {
	select {
	case c.outbox <- msg:
		return
	default:
	}

	select {
	case <-c.outbox:
	default:
	}
	logging.BroadcastWarn("client %s queue full, dropped oldest message", c.id)

	select {
	case c.outbox <- msg:
	default:
		// The writeLoop drained concurrently; nothing left to drop.
	}
}

// Close stops the client's delivery goroutine and closes the
// underlying connection.
func (c *WSClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Broadcaster is the process-global fan-out point every controller
// write publishes through. Publish never blocks the caller on client
// I/O: events are queued onto an internal dispatch goroutine (the
// "scheduler"), which snapshots the client set and enqueues onto each
// client's own buffered queue.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]Client

	events chan Event
	stop   chan struct{}
}

// eventQueueCapacity bounds the number of events awaiting dispatch.
// A full queue means the dispatch goroutine itself has fallen behind
// (not a single slow client, which is absorbed by the per-client
// queue); such events are dropped with a warning rather than blocking
// the controller.
const eventQueueCapacity = 256

// New constructs a Broadcaster and starts its dispatch goroutine.
// Call Shutdown to stop it.
func New() *Broadcaster {
	b := &Broadcaster{
		clients: make(map[string]Client),
		events:  make(chan Event, eventQueueCapacity),
		stop:    make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

func (b *Broadcaster) dispatchLoop() {
	for {
		select {
		case ev := <-b.events:
			b.deliver(ev)
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) deliver(ev Event) {
	data, err := json.Marshal(ev.envelope())
	if err != nil {
		logging.BroadcastWarn("failed to marshal %s event for task %d: %v", ev.Type, ev.TaskID, err)
		return
	}

	b.mu.RLock()
	snapshot := make([]Client, 0, len(b.clients))
	for _, c := range b.clients {
		snapshot = append(snapshot, c)
	}
	b.mu.RUnlock()

	for _, c := range snapshot {
		c.Enqueue(data)
	}
}

// Publish enqueues ev for asynchronous delivery. Never blocks beyond a
// channel send to the dispatch goroutine; if even that queue is full,
// the event is dropped and a warning logged.
func (b *Broadcaster) Publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		logging.BroadcastWarn("event queue full, dropping %s event for task %d", ev.Type, ev.TaskID)
	}
}

// Subscribe registers c for delivery. The HTTP/WebSocket layer
// (external to this core) owns accepting the connection and wrapping
// it in a Client (typically a *WSClient via NewWSClient).
func (b *Broadcaster) Subscribe(c Client) {
	b.mu.Lock()
	b.clients[c.ID()] = c
	b.mu.Unlock()
}

// Unsubscribe unregisters and closes c, if still present.
func (b *Broadcaster) Unsubscribe(c Client) {
	b.mu.Lock()
	_, ok := b.clients[c.ID()]
	delete(b.clients, c.ID())
	b.mu.Unlock()
	if ok {
		c.Close()
	}
}

// ClientCount returns the number of currently registered clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Shutdown stops the dispatch goroutine and closes every client
// connection.
func (b *Broadcaster) Shutdown() {
	close(b.stop)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.clients {
		c.Close()
	}
	b.clients = make(map[string]Client)
}
