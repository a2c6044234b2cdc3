package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/queue"
)

func TestRecorderPublishesEvent(t *testing.T) {
	q := queue.NewInMemory(4)
	rec := NewRecorder(nil, q)
	ctx := context.Background()

	rec.Log(ctx, Event{
		Kind:      KindScanRecorded,
		StudentID: "stu-1",
		JobID:     "job-1",
		RoundID:   "round-1",
		ActorID:   "op-1",
	})

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "audit", msg.Type)
		var evt Event
		require.NoError(t, json.Unmarshal(msg.Body, &evt))
		assert.Equal(t, KindScanRecorded, evt.Kind)
		assert.Equal(t, "stu-1", evt.StudentID)
		assert.Equal(t, "op-1", evt.ActorID)
		assert.NotEmpty(t, evt.ID, "id assigned when missing")
		assert.False(t, evt.OccurredAt.IsZero(), "timestamp assigned when missing")
	case <-time.After(time.Second):
		t.Fatal("no audit event published")
	}
}

func TestRecorderWithoutQueue(t *testing.T) {
	rec := NewRecorder(nil, nil)
	// Log sink only; must not panic.
	rec.Log(context.Background(), Event{Kind: KindScanRejected, ActorID: "op-1"})
}

func TestMemoryLogger(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Log(ctx, Event{Kind: KindScanRecorded, ActorID: "op-1"})
	m.Log(ctx, Event{Kind: KindScanConflict, ActorID: "op-2"})

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindScanRecorded, events[0].Kind)
	assert.Equal(t, KindScanConflict, events[1].Kind)
	assert.False(t, events[0].OccurredAt.IsZero())
}
