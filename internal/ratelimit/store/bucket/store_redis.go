package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventreg/internal/ratelimit/models"
	"eventreg/pkg/requestcontext"
)

// slidingWindowScript trims the sorted set to the window, then adds the
// request when there is room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisBucketStore shares sliding windows across instances through Redis
// sorted sets.
type RedisBucketStore struct {
	client redis.Cmdable
}

// NewRedisBucketStore creates a Redis-backed bucket store.
func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow records one request for key if the window has room.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	nowMS := now.UnixMilli()

	raw, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		nowMS,
		limit.Window.Milliseconds(),
		limit.Requests,
		strconv.FormatInt(nowMS, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	resetAt := time.UnixMilli(raw[2]).Add(limit.Window)
	result := &models.Result{
		Allowed:   raw[0] == 1,
		Limit:     limit.Requests,
		Remaining: max(limit.Requests-int(raw[1]), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(now, resetAt)
	}
	return result, nil
}

// Reset clears the counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
