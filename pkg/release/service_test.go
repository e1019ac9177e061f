// 文件: pkg/release/service_test.go
package release

import (
	"context"
	"errors"
	"testing"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

func newHarness(t *testing.T) (*Service, *txn.MemoryRepository, *advertisement.MemoryRepository, *platformx.FakeClient) {
	t.Helper()
	txns := txn.NewMemoryRepository()
	ads := advertisement.NewMemoryRepository()
	fake := platformx.NewFakeClient()
	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: fake})
	return NewService(reg, txns, ads, nil), txns, ads, fake
}

func TestReleaseCompletesOnSuccess(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, fake := newHarness(t)

	ad := advertisement.New(1, "ad-ext-1", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(1, 10, ad.ID)
	tr.OrderID = "order-1"
	tr.Status = txn.StatusCheckReceived
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := txns.Get(ctx, tr.ID)
	if got.Status != txn.StatusCompleted {
		t.Fatalf("expected completed, got %v", got.Status)
	}
	gotAd, _ := ads.Get(ctx, ad.ID)
	if gotAd.Status != advertisement.StatusDeleted {
		t.Fatalf("expected ad deleted, got %v", gotAd.Status)
	}
	if len(fake.ReleasedOrders) != 1 || fake.ReleasedOrders[0] != "order-1" {
		t.Fatalf("expected release call for order-1, got %+v", fake.ReleasedOrders)
	}
}

type failingReleaseClient struct {
	*platformx.FakeClient
}

func (f *failingReleaseClient) ReleaseOrder(ctx context.Context, orderID, idempotencyToken string) error {
	return errors.New("platform-x: release endpoint timed out")
}

func TestReleaseStillCompletesOnAPIFailure(t *testing.T) {
	ctx := context.Background()
	txns := txn.NewMemoryRepository()
	ads := advertisement.NewMemoryRepository()
	reg := account.NewRegistry(account.NewMemoryRepository())
	reg.Register(&account.Handle{AccountID: 1, Tag: "acct-1", PlatformX: &failingReleaseClient{platformx.NewFakeClient()}})
	svc := NewService(reg, txns, ads, nil)

	ad := advertisement.New(2, "ad-ext-2", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(2, 11, ad.ID)
	tr.OrderID = "order-2"
	tr.Status = txn.StatusCheckReceived
	txns.Create(ctx, tr)

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := txns.Get(ctx, tr.ID)
	if got.Status != txn.StatusCompleted {
		t.Fatalf("expected completed despite API failure, got %v", got.Status)
	}
	if got.FailureReason == "" {
		t.Fatal("expected the release error to be recorded")
	}
}

func TestForceReleaseCompletesNonStandardState(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _ := newHarness(t)

	ad := advertisement.New(3, "ad-ext-3", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(3, 12, ad.ID)
	tr.OrderID = "order-3"
	tr.Status = txn.StatusWaitingPayment
	txns.Create(ctx, tr)

	if err := svc.ForceRelease(ctx, tr.ID, "admin override: buyer disputed, funds confirmed externally"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := txns.Get(ctx, tr.ID)
	if got.Status != txn.StatusCompleted {
		t.Fatalf("expected completed, got %v", got.Status)
	}
}

func TestForceReleaseRejectsAlreadyTerminal(t *testing.T) {
	ctx := context.Background()
	svc, txns, ads, _ := newHarness(t)

	ad := advertisement.New(4, "ad-ext-4", 1, 100, 10, 1000, nil)
	ads.Create(ctx, ad)
	tr := txn.NewPending(4, 13, ad.ID)
	tr.Status = txn.StatusCompleted
	txns.Create(ctx, tr)

	if err := svc.ForceRelease(ctx, tr.ID, "whatever"); err == nil {
		t.Fatal("expected an error releasing an already-terminal transaction")
	}
}
