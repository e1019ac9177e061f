// 文件: pkg/chatmsg/memory_repo_test.go
package chatmsg

import (
	"context"
	"testing"
)

func TestUpsertIsIdempotentByExternalID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	m := New(1, 100, "ext-1", SenderCounterparty, "hello", 1000)
	if err := repo.Upsert(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dup := New(2, 100, "ext-1", SenderCounterparty, "hello again", 2000)
	if err := repo.Upsert(ctx, dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, err := repo.ListByTxn(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message after duplicate upsert, got %d", len(msgs))
	}
	if msgs[0].Body != "hello" {
		t.Fatalf("expected the first write to win, got body %q", msgs[0].Body)
	}
}

func TestListByTxnOrdersBySentAt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.Upsert(ctx, New(1, 100, "ext-1", SenderUs, "second", 2000))
	repo.Upsert(ctx, New(2, 100, "ext-2", SenderCounterparty, "first", 1000))

	msgs, _ := repo.ListByTxn(ctx, 100)
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Fatalf("expected chronological order, got %+v", msgs)
	}
}

func TestClassifySender(t *testing.T) {
	if got := ClassifySender("u1", "u1", false); got != SenderUs {
		t.Fatalf("expected SenderUs, got %v", got)
	}
	if got := ClassifySender("u2", "u1", false); got != SenderCounterparty {
		t.Fatalf("expected SenderCounterparty, got %v", got)
	}
	if got := ClassifySender("u2", "u1", true); got != SenderSystem {
		t.Fatalf("expected SenderSystem, got %v", got)
	}
}
