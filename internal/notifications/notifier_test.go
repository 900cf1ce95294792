package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	channel string
	event   Event
}

// subscribed starts a pattern subscriber on a fresh miniredis and returns
// the notifier plus a stream of decoded deliveries.
func subscribed(t *testing.T, ctx context.Context) (*Notifier, <-chan delivery) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	out := make(chan delivery, 16)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		var ev Event
		if json.Unmarshal([]byte(payload), &ev) != nil {
			ev.Type = payload
		}
		out <- delivery{channel, ev}
	}))
	return n, out
}

func next(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
		return delivery{}
	}
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.SendEvent(ctx, EventFollowerAdded, map[string]uint{"follower_id": 1}, 2))
	assert.NoError(t, n.BroadcastEvent(ctx, EventPostCreated, map[string]uint{"post_id": 1}))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {}))
}

func TestNotifier_SendEventFansOutPerUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n, out := subscribed(t, ctx)

	require.NoError(t, n.SendEvent(ctx, EventPostReactionUpdated, map[string]int{"likes_count": 3}, 4, 9))

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		d := next(t, out)
		got[d.channel] = d.event.Type
		assert.False(t, d.event.Timestamp.IsZero())
	}
	assert.Equal(t, map[string]string{
		"notifications:user:4": EventPostReactionUpdated,
		"notifications:user:9": EventPostReactionUpdated,
	}, got)
}

func TestNotifier_BroadcastEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n, out := subscribed(t, ctx)

	require.NoError(t, n.BroadcastEvent(ctx, EventPostCreated, map[string]uint{"post_id": 12}))
	d := next(t, out)
	assert.Equal(t, broadcastChannel, d.channel)
	assert.Equal(t, EventPostCreated, d.event.Type)
	assert.Equal(t, map[string]any{"post_id": float64(12)}, d.event.Payload)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n, out := subscribed(t, ctx)

	require.NoError(t, n.SendEvent(context.Background(), EventCommentCreated, nil, 4))
	next(t, out)

	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, n.SendEvent(context.Background(), EventCommentDeleted, nil, 4))
	assert.Never(t, func() bool { return len(out) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberSurvivesHandlerPanic(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	calls := make(chan string, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		calls <- payload
		if len(calls) == 1 {
			panic("boom")
		}
	}))

	require.NoError(t, n.PublishBroadcast(ctx, "first"))
	require.NoError(t, n.PublishBroadcast(ctx, "second"))
	assert.Eventually(t, func() bool { return len(calls) == 2 }, time.Second, 10*time.Millisecond)
}
