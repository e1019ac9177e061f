// 文件: pkg/ratelimit/limiter.go
// Limiter self-throttles outbound calls to Platform-X using a Redis
// Lua-scripted token bucket shared across every process instance, so a
// multi-instance deployment never collectively exceeds the exchange's
// per-key rate limit.

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	client *redis.Client
}

func New(addr string) *Limiter {
	return &Limiter{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func NewFromClient(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// luaTokenBucket refills at rate tokens/intervalSeconds up to capacity and
// atomically consumes one token, returning 1 (allowed) or 0 (throttled).
// KEYS[1]: bucket key
// ARGV[1]: capacity
// ARGV[2]: refill tokens per interval
// ARGV[3]: interval seconds
// ARGV[4]: now (unix seconds)
const luaTokenBucket = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill = tonumber(ARGV[2])
	local interval = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(bucket[1])
	local ts = tonumber(bucket[2])
	if tokens == nil then
		tokens = capacity
		ts = now
	end

	local elapsed = now - ts
	if elapsed > 0 then
		local refilled = (elapsed / interval) * refill
		tokens = math.min(capacity, tokens + refilled)
		ts = now
	end

	if tokens < 1 then
		redis.call('HMSET', key, 'tokens', tokens, 'ts', ts)
		redis.call('EXPIRE', key, interval * 2)
		return 0
	end

	tokens = tokens - 1
	redis.call('HMSET', key, 'tokens', tokens, 'ts', ts)
	redis.call('EXPIRE', key, interval * 2)
	return 1
`

// Allow consumes one token from bucket, returning false when the bucket
// is empty and the caller should back off rather than call Platform-X.
func (l *Limiter) Allow(ctx context.Context, bucket string, capacity, refillPerInterval int, interval time.Duration) (bool, error) {
	res, err := l.client.Eval(ctx, luaTokenBucket, []string{bucket},
		capacity, refillPerInterval, int(interval.Seconds()), time.Now().Unix()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
