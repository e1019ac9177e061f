// 文件: pkg/account/registry_test.go
package account

import (
	"context"
	"testing"

	"github.com/itrader/agent/pkg/platformx"
)

func TestPickWithCapacitySkipsFullAccounts(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	reg.Register(&Handle{AccountID: 1, Tag: "acct-1", PlatformX: &platformx.FakeClient{}})
	reg.Register(&Handle{AccountID: 2, Tag: "acct-2", PlatformX: &platformx.FakeClient{}})

	counts := map[int64]int{1: 5, 2: 1}
	activeCount := func(ctx context.Context, accountID int64) (int, error) {
		return counts[accountID], nil
	}

	accountID, client, ok, err := reg.PickWithCapacity(context.Background(), 5, activeCount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a free account")
	}
	if accountID != 2 {
		t.Fatalf("expected account 2 (the one under capacity), got %d", accountID)
	}
	if client == nil {
		t.Fatal("expected a non-nil client handle")
	}
}

func TestPickWithCapacityNoneFree(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	reg.Register(&Handle{AccountID: 1, Tag: "acct-1", PlatformX: &platformx.FakeClient{}})

	activeCount := func(ctx context.Context, accountID int64) (int, error) { return 10, nil }

	_, _, ok, err := reg.PickWithCapacity(context.Background(), 5, activeCount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no account to be free")
	}
}

func TestPickWithCapacityNoHandles(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	_, _, ok, err := reg.PickWithCapacity(context.Background(), 5, func(ctx context.Context, accountID int64) (int, error) { return 0, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no account when registry is empty")
	}
}
