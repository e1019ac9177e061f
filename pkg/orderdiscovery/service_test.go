// 文件: pkg/orderdiscovery/service_test.go
package orderdiscovery

import (
	"context"
	"testing"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

func newHarness(t *testing.T) (*Service, *txn.MemoryRepository, *advertisement.MemoryRepository, *payout.MemoryRepository, *chatmsg.MemoryRepository, *platformx.FakeClient, *account.Registry) {
	t.Helper()
	txns := txn.NewMemoryRepository()
	ads := advertisement.NewMemoryRepository()
	payouts := payout.NewMemoryRepository()
	messages := chatmsg.NewMemoryRepository()
	fake := platformx.NewFakeClient()

	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: fake, PlatformXUserID: "us-1"})

	svc := NewService(reg, txns, ads, payouts, messages, nil, nil)
	return svc, txns, ads, payouts, messages, fake, reg
}

func TestTickLinksOrderToExistingTransaction(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, payouts, _, fake, _ := newHarness(t)

	p := payout.New(10, "payout-ext-1", 1, 4)
	p.AmountMinor = 5000
	payouts.Create(ctx, p)

	ad := advertisement.New(20, "ad-ext-1", 1, 1000, 5, 5000, []string{"card"})
	ads.Create(ctx, ad)

	tr := txn.NewPending(30, p.ID, ad.ID)
	txns.Create(ctx, tr)

	fake.Orders["order-1"] = platformx.Order{OrderID: "order-1", ItemID: "ad-ext-1", Amount: 5000, Status: platformx.OrderStatusPaymentInProcessing}

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.GetByOrderID(ctx, "order-1")
	if err != nil {
		t.Fatalf("expected order to be linked: %v", err)
	}
	if got.ID != tr.ID {
		t.Fatalf("expected transaction %d, got %d", tr.ID, got.ID)
	}
	if got.Status != txn.StatusChatStarted {
		t.Fatalf("expected status chat_started, got %v", got.Status)
	}
}

func TestTickCreatesPlaceholderForUnresolvableOrder(t *testing.T) {
	ctx := context.Background()
	svc, txns, _, _, _, fake, _ := newHarness(t)

	fake.Orders["orphan-1"] = platformx.Order{OrderID: "orphan-1", Amount: 9999, Status: platformx.OrderStatusWaitingCoinTransfer}

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.GetByOrderID(ctx, "orphan-1")
	if err != nil {
		t.Fatalf("expected a flagged transaction to exist: %v", err)
	}
	if !got.FlaggedReview {
		t.Fatal("expected orphan transaction to be flagged for review")
	}
}

func TestTickMirrorsChatMessages(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, payouts, messages, fake, _ := newHarness(t)

	p := payout.New(11, "payout-ext-2", 1, 4)
	p.AmountMinor = 1000
	payouts.Create(ctx, p)
	ad := advertisement.New(21, "ad-ext-2", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(31, p.ID, ad.ID)
	txns.Create(ctx, tr)

	fake.Orders["order-2"] = platformx.Order{OrderID: "order-2", ItemID: "ad-ext-2", Amount: 1000, Status: platformx.OrderStatusPaymentInProcessing}
	fake.Messages["order-2"] = []platformx.ChatMessage{
		{MessageID: "m1", UserID: "them", Body: "hi", MsgType: 1, SentAt: 1},
	}

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, err := messages.ListByTxn(ctx, tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sender != chatmsg.SenderCounterparty {
		t.Fatalf("expected one counterparty message, got %+v", msgs)
	}
}
