package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ps := NewRedisPubSubFromClient(client)
	t.Cleanup(func() { ps.Close() })
	return ps
}

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisPubSub_PatternDelivery(t *testing.T) {
	ps := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := ps.SubscribePattern(ctx, PatternRoomMessages)
	require.NoError(t, err)

	ev, err := NewEvent(EventChatMessage, "room-1", map[string]string{"message": "hi"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, RoomMessagesChannel("room-1"), ev))

	got := receive(t, ch)
	assert.Equal(t, EventChatMessage, got.Type)
	assert.Equal(t, "room-1", got.RoomID)

	var payload map[string]string
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.Equal(t, "hi", payload["message"])
}

func TestRedisPubSub_SubscribeIsChannelScoped(t *testing.T) {
	ps := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := ps.Subscribe(ctx, RoomControlChannel("room-1"))
	require.NoError(t, err)

	other, _ := NewEvent(EventRoomClosed, "room-2", RoomClosedPayload{RoomID: "room-2"})
	mine, _ := NewEvent(EventRoomClosed, "room-1", RoomClosedPayload{RoomID: "room-1"})
	require.NoError(t, ps.Publish(ctx, RoomControlChannel("room-2"), other))
	require.NoError(t, ps.Publish(ctx, RoomControlChannel("room-1"), mine))

	assert.Equal(t, "room-1", receive(t, ch).RoomID)
}

func TestRedisPubSub_UnsubscribeClosesChannel(t *testing.T) {
	ps := newTestRedis(t)
	ctx := context.Background()

	ch, err := ps.Subscribe(ctx, RoomMessagesChannel("room-1"))
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, RoomMessagesChannel("room-1")))

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}
