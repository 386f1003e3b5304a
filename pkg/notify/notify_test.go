package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.Notify(context.Background(), "subject", "body"))
}

func TestMemoryNotifierCaptures(t *testing.T) {
	n := NewMemoryNotifier()
	require.NoError(t, n.Notify(context.Background(), "s1", "b1"))
	require.NoError(t, n.Notify(context.Background(), "s2", "b2"))

	msgs := n.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Subject: "s1", Body: "b1"}, msgs[0])
}

func TestRedisNotifierPublishes(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer func() { _ = sub.Close() }()
	pubsub := sub.Subscribe(ctx, "admin")
	defer func() { _ = pubsub.Close() }()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(srv.Addr(), "admin")
	defer func() { _ = n.Close() }()
	require.NoError(t, n.Notify(ctx, "approval required: wf-1", "risk 0.9"))

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", msg.Channel)
	assert.Equal(t, "approval required: wf-1\n\nrisk 0.9", msg.Payload)
}

func TestRedisNotifierConnectionError(t *testing.T) {
	n := NewRedisNotifier("127.0.0.1:1", "admin")
	defer func() { _ = n.Close() }()
	assert.Error(t, n.Notify(context.Background(), "s", "b"))
}
