// 文件: pkg/ratelimit/memory_limiter_test.go
package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterExhaustsCapacity(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "bucket-1", 3, 3, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("expected token %d to be allowed", i)
		}
	}

	ok, err := l.Allow(ctx, "bucket-1", 3, 3, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected the fourth call to be throttled")
	}
}

func TestMemoryLimiterBucketsAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	l.Allow(ctx, "a", 1, 1, time.Second)
	ok, _ := l.Allow(ctx, "b", 1, 1, time.Second)
	if !ok {
		t.Fatal("expected a separate bucket to have its own capacity")
	}
}

var _ Allower = (*MemoryLimiter)(nil)
var _ Allower = (*Limiter)(nil)
