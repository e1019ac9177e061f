// 文件: pkg/ratelimit/memory_limiter.go
// MemoryLimiter is a single-process token bucket fake used in tests so
// they don't need a live Redis instance.

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucketState struct {
	tokens float64
	at     time.Time
}

type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucketState)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, bucket string, capacity, refillPerInterval int, interval time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[bucket]
	if !ok {
		b = &bucketState{tokens: float64(capacity), at: now}
		l.buckets[bucket] = b
	}

	elapsed := now.Sub(b.at)
	if elapsed > 0 && interval > 0 {
		refilled := elapsed.Seconds() / interval.Seconds() * float64(refillPerInterval)
		b.tokens = min(float64(capacity), b.tokens+refilled)
		b.at = now
	}

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}
