// 文件: pkg/ratelimit/interface.go
package ratelimit

import (
	"context"
	"time"
)

// Allower is the dependency surface order discovery uses to self-throttle
// its order-list and chat-read calls; both Limiter (Redis) and
// MemoryLimiter satisfy it.
type Allower interface {
	Allow(ctx context.Context, bucket string, capacity, refillPerInterval int, interval time.Duration) (bool, error)
}
