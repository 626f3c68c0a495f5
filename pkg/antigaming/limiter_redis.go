package antigaming

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits an event iff fewer than limit timestamps
// remain in the trailing window after pruning, atomically. Adapted from
// the teacher's redisTokenBucketScript (kernel/limiter_redis.go): same
// "one round-trip, one atomic script" shape, generalized from a token
// bucket to a sliding-window sorted-set log since spec.md §4.8 specifies
// windowed counting, not refill-rate bucketing.
//
// KEYS[1] = bucket key
// ARGV[1] = now (ms)
// ARGV[2] = window width (ms)
// ARGV[3] = limit
// ARGV[4] = member suffix (for ZADD uniqueness)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local suffix = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)

if count >= limit then
    return {0, count}
end

redis.call("ZADD", key, now, now .. "-" .. suffix)
redis.call("PEXPIRE", key, window)
return {1, count + 1}
`)

// RedisLimiter implements Limiter against a shared Redis instance, for
// deployments running more than one process against the same agents.
type RedisLimiter struct {
	client   *redis.Client
	windowMs int64
	limit    int
}

// NewRedisLimiter constructs a Redis-backed sliding window limiter.
func NewRedisLimiter(client *redis.Client, windowMs int64, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, windowMs: windowMs, limit: limit}
}

// Check implements the Limiter interface against Redis.
func (l *RedisLimiter) Check(ctx context.Context, agent, intentType string, nowMs int64) (RateLimitResult, error) {
	key := fmt.Sprintf("antigaming:ratelimit:%s:%s", agent, intentType)
	suffix := fmt.Sprintf("%d", rand.Int63())

	res, err := slidingWindowScript.Run(ctx, l.client, []string{key}, nowMs, l.windowMs, l.limit, suffix).Result()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("antigaming: redis limiter error: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return RateLimitResult{}, fmt.Errorf("antigaming: invalid response from lua script")
	}

	allowed, _ := results[0].(int64)
	count, _ := results[1].(int64)

	if allowed != 1 {
		return RateLimitResult{OK: false, CurrentCount: int(count), Limit: l.limit, Reason: "rate limit exceeded"}, nil
	}
	return RateLimitResult{OK: true, CurrentCount: int(count), Limit: l.limit}, nil
}
