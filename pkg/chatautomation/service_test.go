// 文件: pkg/chatautomation/service_test.go
package chatautomation

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

func newHarness(t *testing.T) (*Service, *txn.MemoryRepository, *advertisement.MemoryRepository, *chatmsg.MemoryRepository, *payout.MemoryRepository, *platformx.FakeClient) {
	t.Helper()
	txns := txn.NewMemoryRepository()
	ads := advertisement.NewMemoryRepository()
	messages := chatmsg.NewMemoryRepository()
	payouts := payout.NewMemoryRepository()
	fake := platformx.NewFakeClient()

	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: fake, PlatformXUserID: "us-1"})

	svc := NewService(reg, txns, ads, messages, payouts, nil)
	return svc, txns, ads, messages, payouts, fake
}

func newPayout(t *testing.T, payouts *payout.MemoryRepository, id int64, bank, wallet string, amount int64) *payout.Payout {
	t.Helper()
	ctx := context.Background()
	p := payout.New(id, "ext-payout", 1, 1)
	p.Bank = bank
	p.Wallet = wallet
	p.AmountMinor = amount
	if err := payouts.Create(ctx, p); err != nil {
		t.Fatalf("create payout: %v", err)
	}
	return p
}

func TestAdvanceAsksPhysicalPersonOnFirstTick(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _, payouts, fake := newHarness(t)

	newPayout(t, payouts, 10, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(1, "ad-ext-1", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(1, 10, ad.ID)
	tr.OrderID = "order-1"
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ChatStep != 1 {
		t.Fatalf("expected chat step 1, got %d", got.ChatStep)
	}
	if len(fake.SentMessages) != 1 {
		t.Fatalf("expected one message sent, got %d", len(fake.SentMessages))
	}
}

func TestAdvanceGoesStupidWhenNotAPhysicalPerson(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, messages, payouts, fake := newHarness(t)

	newPayout(t, payouts, 11, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(2, "ad-ext-2", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(2, 11, ad.ID)
	tr.OrderID = "order-2"
	tr.ChatStep = 1
	tr.Status = txn.StatusChatStarted
	txns.Create(ctx, tr)

	messages.Upsert(ctx, chatmsg.New(100, tr.ID, "m1", chatmsg.SenderCounterparty, "нет", 1))
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != txn.StatusStupid {
		t.Fatalf("expected stupid, got %v", got.Status)
	}
	gotAd, err := ads.Get(ctx, ad.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAd.Status != advertisement.StatusDeleted {
		t.Fatalf("expected advertisement deleted, got %v", gotAd.Status)
	}
	_ = fake
}

func TestAdvanceGoesStupidOnBankMismatch(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, messages, payouts, _ := newHarness(t)

	newPayout(t, payouts, 12, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(3, "ad-ext-3", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(3, 12, ad.ID)
	tr.OrderID = "order-3"
	tr.ChatStep = 3
	tr.Status = txn.StatusChatStarted
	txns.Create(ctx, tr)

	messages.Upsert(ctx, chatmsg.New(101, tr.ID, "m1", chatmsg.SenderCounterparty, "Тинькофф", 1))
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != txn.StatusStupid {
		t.Fatalf("expected stupid, got %v", got.Status)
	}

	p, err := payouts.Get(ctx, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasTransaction {
		t.Fatalf("expected payout looped back for re-placement")
	}
}

func TestAdvanceConfirmsBankAndMovesToWaitingPayment(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, messages, payouts, _ := newHarness(t)

	newPayout(t, payouts, 13, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(4, "ad-ext-4", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(4, 13, ad.ID)
	tr.OrderID = "order-4"
	tr.ChatStep = 3
	tr.Status = txn.StatusChatStarted
	txns.Create(ctx, tr)

	messages.Upsert(ctx, chatmsg.New(102, tr.ID, "m1", chatmsg.SenderCounterparty, "Сбербанк", 1))
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := txns.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ChatStep != 4 {
		t.Fatalf("expected chat step 4, got %d", got.ChatStep)
	}
	if got.Status != txn.StatusWaitingPayment {
		t.Fatalf("expected waiting_payment, got %v", got.Status)
	}
}

func TestAdvanceWaitsForPaidKeyword(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, messages, payouts, _ := newHarness(t)

	newPayout(t, payouts, 14, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(5, "ad-ext-5", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(5, 14, ad.ID)
	tr.OrderID = "order-5"
	tr.ChatStep = 5
	tr.Status = txn.StatusWaitingPayment
	txns.Create(ctx, tr)

	// No confirmation yet: a tick should not advance the step.
	messages.Upsert(ctx, chatmsg.New(103, tr.ID, "m1", chatmsg.SenderCounterparty, "привет", 1))
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := txns.Get(ctx, tr.ID)
	if got.ChatStep != 5 {
		t.Fatalf("expected chat step to stay at 5, got %d", got.ChatStep)
	}

	// Counterparty confirms payment: should advance to step 6.
	messages.Upsert(ctx, chatmsg.New(104, tr.ID, "m2", chatmsg.SenderCounterparty, "Оплатил, проверьте пожалуйста", 2))
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = txns.Get(ctx, tr.ID)
	if got.ChatStep != 6 {
		t.Fatalf("expected chat step 6, got %d", got.ChatStep)
	}
	if got.Status != txn.StatusPaymentReceived {
		t.Fatalf("expected payment_received, got %v", got.Status)
	}
}

func TestAdvanceWaitsForReceiptProcessorMatch(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _, payouts, _ := newHarness(t)

	newPayout(t, payouts, 15, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(6, "ad-ext-6", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(6, 15, ad.ID)
	tr.OrderID = "order-6"
	tr.ChatStep = 7
	tr.Status = txn.StatusPaymentReceived
	txns.Create(ctx, tr)

	// The Receipt Processor hasn't matched yet: step 7 should not advance.
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := txns.Get(ctx, tr.ID)
	if got.ChatStep != 7 {
		t.Fatalf("expected chat step to stay at 7, got %d", got.ChatStep)
	}

	// Simulate the Receipt Processor's independent transition.
	if _, err := txns.Transition(ctx, tr.ID, txn.StatusPaymentReceived, txn.StatusCheckReceived); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = txns.Get(ctx, tr.ID)
	if got.ChatStep != 8 {
		t.Fatalf("expected chat step 8, got %d", got.ChatStep)
	}
}

func TestAdvanceStopsAtScriptEnd(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _, payouts, fake := newHarness(t)

	newPayout(t, payouts, 16, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(7, "ad-ext-7", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(7, 16, ad.ID)
	tr.OrderID = "order-7"
	tr.ChatStep = 9
	tr.Status = txn.StatusCheckReceived
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.SentMessages) != 0 {
		t.Fatalf("expected no message sent once script is exhausted, got %d", len(fake.SentMessages))
	}
}

func TestAdvanceSkipsTerminalTransactions(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _, payouts, fake := newHarness(t)

	newPayout(t, payouts, 17, "Сбербанк", "card-1", 15000)
	ad := advertisement.New(8, "ad-ext-8", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(8, 17, ad.ID)
	tr.OrderID = "order-8"
	tr.Status = txn.StatusCompleted
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.SentMessages) != 0 {
		t.Fatalf("expected completed transaction to be left alone, got %d sent messages", len(fake.SentMessages))
	}
}
