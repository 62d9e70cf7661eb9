package broadcast

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdog/internal/task"
)

// fakeConn records every message written to it instead of touching the
// network, so delivery order and content can be asserted directly.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	blockCh  chan struct{} // when non-nil, WriteMessage blocks until closed
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.blockCh != nil {
		<-f.blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.messages = append(f.messages, cp)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.messages))
	copy(out, f.messages)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishDeliversEnvelopeToClient(t *testing.T) {
	b := New()
	defer b.Shutdown()

	conn := &fakeConn{}
	client := NewWSClient(conn)
	b.Subscribe(client)

	tsk := &task.Task{ID: 7, Name: "write tests"}
	b.Publish(NewTaskCreated(tsk, nil))

	waitFor(t, func() bool { return len(conn.snapshot()) == 1 })

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.snapshot()[0], &envelope))
	assert.Equal(t, "task_created", envelope["type"])
	assert.Equal(t, float64(7), envelope["task_id"])
	assert.Equal(t, "write tests", envelope["task_name"])
	assert.Nil(t, envelope["source_user_name"])
}

func TestTaskUpdatedEnvelopeCarriesUpdatedFields(t *testing.T) {
	b := New()
	defer b.Shutdown()

	conn := &fakeConn{}
	b.Subscribe(NewWSClient(conn))

	tsk := &task.Task{ID: 3, Name: "rename"}
	b.Publish(NewTaskUpdated(tsk, []string{"name", "priority"}, nil))

	waitFor(t, func() bool { return len(conn.snapshot()) == 1 })

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.snapshot()[0], &envelope))
	fields, ok := envelope["updated_fields"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"name", "priority"}, fields)
}

func TestDeliveryOrderIsFIFOPerClient(t *testing.T) {
	b := New()
	defer b.Shutdown()

	conn := &fakeConn{}
	b.Subscribe(NewWSClient(conn))

	for i := 1; i <= 5; i++ {
		b.Publish(NewTaskCreated(&task.Task{ID: i, Name: "t"}, nil))
	}

	waitFor(t, func() bool { return len(conn.snapshot()) == 5 })

	for i, raw := range conn.snapshot() {
		var envelope map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		assert.Equal(t, float64(i+1), envelope["task_id"])
	}
}

func TestSlowClientDoesNotBlockFastClient(t *testing.T) {
	b := New()
	defer b.Shutdown()

	slowConn := &fakeConn{blockCh: make(chan struct{})}
	fastConn := &fakeConn{}
	b.Subscribe(NewWSClient(slowConn))
	b.Subscribe(NewWSClient(fastConn))

	b.Publish(NewTaskCreated(&task.Task{ID: 1, Name: "t"}, nil))

	waitFor(t, func() bool { return len(fastConn.snapshot()) == 1 })
	close(slowConn.blockCh)
}

func TestClientQueueDropsOldestOnOverflow(t *testing.T) {
	b := New()
	defer b.Shutdown()

	block := make(chan struct{})
	conn := &fakeConn{blockCh: block}
	b.Subscribe(NewWSClient(conn))

	// The client's writer is stuck delivering the very first message,
	// so every subsequent Publish piles up in its queue until it
	// overflows and starts dropping the oldest pending entry.
	for i := 1; i <= clientQueueCapacity+10; i++ {
		b.Publish(NewTaskCreated(&task.Task{ID: i, Name: "t"}, nil))
	}
	time.Sleep(50 * time.Millisecond)
	close(block)

	waitFor(t, func() bool { return len(conn.snapshot()) >= 2 })
	// Not every one of the 74 published events survives the drop;
	// the first delivered message (unblocked write) plus whatever
	// wasn't evicted from the bounded queue should show up.
	assert.LessOrEqual(t, len(conn.snapshot()), clientQueueCapacity+1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Shutdown()

	conn := &fakeConn{}
	client := NewWSClient(conn)
	b.Subscribe(client)
	b.Unsubscribe(client)

	b.Publish(NewTaskCreated(&task.Task{ID: 1, Name: "t"}, nil))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, conn.snapshot())
	assert.Equal(t, 0, b.ClientCount())
}

func TestScheduleOptimizedEnvelope(t *testing.T) {
	b := New()
	defer b.Shutdown()

	conn := &fakeConn{}
	b.Subscribe(NewWSClient(conn))

	b.Publish(NewScheduleOptimized(4, 1, "greedy", nil))

	waitFor(t, func() bool { return len(conn.snapshot()) == 1 })

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.snapshot()[0], &envelope))
	assert.Equal(t, "schedule_optimized", envelope["type"])
	assert.Equal(t, float64(4), envelope["scheduled_count"])
	assert.Equal(t, float64(1), envelope["failed_count"])
	assert.Equal(t, "greedy", envelope["algorithm"])
}
