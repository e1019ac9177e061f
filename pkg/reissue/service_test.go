// 文件: pkg/reissue/service_test.go
package reissue

import (
	"context"
	"testing"
	"time"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

func newHarness(t *testing.T) (*Service, *txn.MemoryRepository, *advertisement.MemoryRepository, *payout.MemoryRepository, *chatmsg.MemoryRepository, *platformx.FakeClient) {
	t.Helper()
	txns := txn.NewMemoryRepository()
	ads := advertisement.NewMemoryRepository()
	payouts := payout.NewMemoryRepository()
	messages := chatmsg.NewMemoryRepository()
	fake := platformx.NewFakeClient()
	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: fake})
	return NewService(reg, txns, ads, payouts, messages, nil), txns, ads, payouts, messages, fake
}

func TestTickCancelsOnOrderCancelledStatus(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, payouts, messages, fake := newHarness(t)

	p := payout.New(10, "payout-ext-1", 1, 4)
	p.Decision = payout.DecisionAccepted
	p.HasTransaction = true
	payouts.Create(ctx, p)
	ad := advertisement.New(1, "ad-ext-1", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(1, p.ID, ad.ID)
	tr.OrderID = "order-1"
	tr.Status = txn.StatusWaitingPayment
	txns.Create(ctx, tr)
	messages.Upsert(ctx, chatmsg.New(100, tr.ID, "m1", chatmsg.SenderCounterparty, "hi", 1))

	fake.Orders["order-1"] = platformx.Order{OrderID: "order-1", Status: platformx.OrderStatusCancelled}

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := txns.Get(ctx, tr.ID); err == nil {
		t.Fatal("expected transaction to be deleted")
	}
	if _, err := ads.Get(ctx, ad.ID); err == nil {
		t.Fatal("expected advertisement to be deleted")
	}
	if msgs, _ := messages.ListByTxn(ctx, tr.ID); len(msgs) != 0 {
		t.Fatalf("expected chat messages deleted, got %d", len(msgs))
	}
	got, _ := payouts.Get(ctx, p.ID)
	if got.HasTransaction {
		t.Fatal("expected payout looped back with HasTransaction cleared")
	}
	if len(fake.CancelledAds) != 1 {
		t.Fatalf("expected one best-effort ad cancellation, got %d", len(fake.CancelledAds))
	}
}

func TestTickSweepsStaleInactiveTransaction(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, payouts, _, _ := newHarness(t)

	p := payout.New(11, "payout-ext-2", 1, 4)
	p.Decision = payout.DecisionAccepted
	p.HasTransaction = true
	payouts.Create(ctx, p)
	ad := advertisement.New(2, "ad-ext-2", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(2, p.ID, ad.ID)
	tr.Status = txn.StatusChatStarted
	tr.UpdatedAt = time.Now().Add(-time.Hour).UnixMilli()
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := txns.Get(ctx, tr.ID); err == nil {
		t.Fatal("expected stale transaction to be torn down")
	}
}

func TestTickLeavesActiveTransactionsAlone(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, payouts, _, _ := newHarness(t)

	p := payout.New(12, "payout-ext-3", 1, 4)
	p.Decision = payout.DecisionAccepted
	p.HasTransaction = true
	payouts.Create(ctx, p)
	ad := advertisement.New(3, "ad-ext-3", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(3, p.ID, ad.ID)
	tr.Status = txn.StatusChatStarted
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := txns.Get(ctx, tr.ID); err != nil {
		t.Fatal("expected recently-active transaction to survive the sweep")
	}
}
