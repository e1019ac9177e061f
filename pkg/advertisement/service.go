// 文件: pkg/advertisement/service.go
// Ad Placement: for each accepted payout without a linked Transaction,
// choose a Platform-X account with free ad slots, post a sell ad, and
// create a pending Transaction.

package advertisement

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

// Pricing is the per-ad configuration; price-setting strategy is out
// of scope here, so these values come straight from configuration.
type Pricing struct {
	UnitPrice      int64
	PaymentMethods []string
	MaxSlots       int // ad slots per account before it is considered full
}

// AccountSelector picks a Platform-X account with free ad capacity. The
// Account Registry implements this; Ad Placement only borrows an
// account id and its client, never owns either.
type AccountSelector interface {
	PickWithCapacity(ctx context.Context, maxSlots int, activeCount func(ctx context.Context, accountID int64) (int, error)) (accountID int64, client platformx.Client, ok bool, err error)
}

type Service struct {
	payouts payout.Repository
	ads     Repository
	txns    txn.Repository
	accts   AccountSelector
	pricing Pricing
	bus     *eventbus.Bus
}

func NewService(payouts payout.Repository, ads Repository, txns txn.Repository, accts AccountSelector, pricing Pricing, bus *eventbus.Bus) *Service {
	return &Service{payouts: payouts, ads: ads, txns: txns, accts: accts, pricing: pricing, bus: bus}
}

// Tick is Ad Placement's periodic poll: place one ad per accepted,
// unlinked payout, skipping (not erroring) when every account is full.
func (s *Service) Tick(ctx context.Context) error {
	candidates, err := s.payouts.ListAcceptedWithoutTransaction(ctx)
	if err != nil {
		return fmt.Errorf("advertisement: list candidates: %w", err)
	}

	for _, p := range candidates {
		if !p.AmountRevealed() {
			log.Printf("[AdPlacement] skipping payout %s: amount not yet revealed", p.ExternalID)
			continue
		}
		if err := s.placeOne(ctx, p); err != nil {
			log.Printf("[AdPlacement] payout %s: %v", p.ExternalID, err)
		}
	}
	return nil
}

func (s *Service) placeOne(ctx context.Context, p *payout.Payout) error {
	accountID, client, ok, err := s.accts.PickWithCapacity(ctx, s.pricing.MaxSlots, s.ads.CountActiveByAccount)
	if err != nil {
		return fmt.Errorf("pick account: %w", err)
	}
	if !ok {
		return nil // all accounts full; retry next tick
	}

	if s.pricing.UnitPrice == 0 {
		return fmt.Errorf("unit price is zero")
	}
	quantity := p.AmountMinor / s.pricing.UnitPrice

	// quantity * unitPrice must settle the payout's fiat amount within one
	// fiat unit of rounding slack; guard it before the ad is placed so a
	// pricing change cannot silently decouple the ad from the payout it settles.
	if diff := quantity*s.pricing.UnitPrice - p.AmountMinor; diff > 1 || diff < -1 {
		return fmt.Errorf("ad quantity %d at price %d does not settle payout amount %d", quantity, s.pricing.UnitPrice, p.AmountMinor)
	}

	spec := platformx.AdSpec{
		Side:           "SELL",
		Asset:          "crypto",
		Fiat:           "RUB",
		UnitPrice:      s.pricing.UnitPrice,
		Quantity:       quantity,
		MinAmount:      p.AmountMinor,
		MaxAmount:      p.AmountMinor,
		PaymentMethods: s.pricing.PaymentMethods,
	}
	platformAdID, err := client.CreateAd(ctx, spec)
	if err != nil {
		return fmt.Errorf("create ad on platform-x: %w", err)
	}

	ad := New(idgen.Generate(), platformAdID, accountID, s.pricing.UnitPrice, quantity, p.AmountMinor, s.pricing.PaymentMethods)
	if err := s.ads.Create(ctx, ad); err != nil {
		return fmt.Errorf("persist ad: %w", err)
	}

	s.publish(eventbus.TypeAdvertisementCreated, accountID, map[string]any{
		"advertisement_id": ad.ID,
		"platform_ad_id":   platformAdID,
	})

	t := txn.NewPending(idgen.Generate(), p.ID, ad.ID)
	if err := s.txns.Create(ctx, t); err != nil {
		return fmt.Errorf("persist transaction: %w", err)
	}
	if err := s.payouts.MarkHasTransaction(ctx, p.ID); err != nil {
		return fmt.Errorf("mark payout has transaction: %w", err)
	}
	s.publish(eventbus.TypeTransactionUpdated, accountID, map[string]any{
		"transaction_id": t.ID,
		"status":         string(t.Status),
	})

	log.Printf("[AdPlacement] created ad %s (account %d) for payout %s, transaction %d", platformAdID, accountID, p.ExternalID, t.ID)
	return nil
}

func (s *Service) publish(typ eventbus.Type, accountID int64, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.New(typ, eventbus.Room{Account: accountID}, data, time.Now().UnixMilli()))
}
