package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(2)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{Type: "audit", Body: []byte(`{"kind":"scan_recorded"}`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "audit", msg.Type)
		assert.Equal(t, `{"kind":"scan_recorded"}`, string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Message{Type: "audit"}))
	cancel()
	// A done context refuses the publish even with buffer room left.
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "audit"}), context.Canceled)
}

func TestInMemoryPublishFullDropsMessage(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Message{Type: "audit"}))

	// No consumer is running; the second publish must return at once
	// rather than park the publisher.
	done := make(chan error, 1)
	go func() { done <- q.Publish(ctx, Message{Type: "audit"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFull)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
}

func TestSerializeDeserialize(t *testing.T) {
	msg := Message{Type: "audit", Body: []byte(`{"detail":"a|b"}`)}

	out, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg.Type, out.Type)
	// Split happens at the first separator only; bodies may contain it.
	assert.Equal(t, string(msg.Body), string(out.Body))
}

func TestDeserializeWithoutType(t *testing.T) {
	out, err := deserialize("raw-body")
	require.NoError(t, err)
	assert.Empty(t, out.Type)
	assert.Equal(t, "raw-body", string(out.Body))
}
