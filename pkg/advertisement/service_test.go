// 文件: pkg/advertisement/service_test.go
package advertisement

import (
	"context"
	"testing"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

func TestPlaceOneQuantitySettlesPayoutAmount(t *testing.T) {
	ctx := context.Background()
	ads := NewMemoryRepository()
	txns := txn.NewMemoryRepository()
	payouts := payout.NewMemoryRepository()
	fake := platformx.NewFakeClient()

	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: fake, AdSlotCap: 5})

	svc := NewService(payouts, ads, txns, reg, Pricing{
		UnitPrice:      100,
		PaymentMethods: []string{"sbp"},
		MaxSlots:       5,
	}, nil)

	p := payout.New(1, "payout-ext-1", 1, 4)
	p.AmountMinor = 15000
	p.Decision = payout.DecisionAccepted
	payouts.Create(ctx, p)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, err := ads.GetByPlatformAdID(ctx, "AD1")
	if err != nil {
		t.Fatalf("expected an advertisement to be created: %v", err)
	}
	if created.Quantity != 150 {
		t.Fatalf("expected quantity 150 (15000/100), got %d", created.Quantity)
	}
	if created.MinAmount != 15000 || created.MaxAmount != 15000 {
		t.Fatalf("expected min/max amount 15000, got %d/%d", created.MinAmount, created.MaxAmount)
	}

	got, err := payouts.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.HasTransaction {
		t.Fatal("expected payout marked as having a transaction")
	}
}
