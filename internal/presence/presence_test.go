package presence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisTracker(rdb), mr
}

func isOnline(t *testing.T, tracker *RedisTracker, userID int64) bool {
	t.Helper()
	online, err := tracker.OnlineAmong(context.Background(), []int64{userID})
	require.NoError(t, err)
	return online[userID]
}

func TestRedisTracker_MultipleSessions(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	first, err := tracker.Connect(ctx, 1, "s1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = tracker.Connect(ctx, 1, "s2")
	require.NoError(t, err)
	assert.False(t, first)

	offline, err := tracker.Disconnect(ctx, 1, "s1")
	require.NoError(t, err)
	assert.False(t, offline)

	assert.True(t, isOnline(t, tracker, 1), "user with a remaining session stays online")

	offline, err = tracker.Disconnect(ctx, 1, "s2")
	require.NoError(t, err)
	assert.True(t, offline)

	assert.False(t, isOnline(t, tracker, 1))
}

func TestRedisTracker_DisconnectUnknownSession(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()

	offline, err := tracker.Disconnect(ctx, 9, "never-connected")
	require.NoError(t, err)
	assert.False(t, offline)
	assert.False(t, mr.Exists("online:session:9"))

	assert.False(t, isOnline(t, tracker, 9))
}

func TestRedisTracker_OnlineAmong(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Connect(ctx, 1, "a")
	require.NoError(t, err)
	_, err = tracker.Connect(ctx, 3, "b")
	require.NoError(t, err)

	online, err := tracker.OnlineAmong(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: false, 3: true}, online)

	members, err := mr.SMembers("online:users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, members)
}
