// Package presence tracks which users hold at least one live connection.
// State lives in Redis so every server instance sees the same set.
package presence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey   = "online:users"
	sessionKeyPrefix = "online:session:"
)

var connectScript = redis.NewScript(`
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return redis.call('SCARD', KEYS[1])
`)

var disconnectScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// RedisTracker keeps the online user set and one session set per user
type RedisTracker struct {
	rdb *redis.Client
}

func NewRedisTracker(rdb *redis.Client) *RedisTracker {
	return &RedisTracker{rdb: rdb}
}

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}

// Connect adds a session. It reports true when this is the user's first session.
func (t *RedisTracker) Connect(ctx context.Context, userID int64, sessionID string) (bool, error) {
	n, err := connectScript.Run(ctx, t.rdb,
		[]string{sessionKey(userID), onlineUsersKey},
		sessionID, strconv.FormatInt(userID, 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("presence connect: %w", err)
	}
	return n == 1, nil
}

// Disconnect removes a session. The user goes offline only when no session
// remains; the return value reports that transition. Removing an unknown
// session is a no-op.
func (t *RedisTracker) Disconnect(ctx context.Context, userID int64, sessionID string) (bool, error) {
	n, err := disconnectScript.Run(ctx, t.rdb,
		[]string{sessionKey(userID), onlineUsersKey},
		sessionID, strconv.FormatInt(userID, 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("presence disconnect: %w", err)
	}
	return n == 1, nil
}

// OnlineAmong checks many users with a single round trip
func (t *RedisTracker) OnlineAmong(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	online := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return online, nil
	}
	members := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		members[i] = strconv.FormatInt(id, 10)
	}
	flags, err := t.rdb.SMIsMember(ctx, onlineUsersKey, members...).Result()
	if err != nil {
		return nil, err
	}
	for i, id := range userIDs {
		online[id] = flags[i]
	}
	return online, nil
}
