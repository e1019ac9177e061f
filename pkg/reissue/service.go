// 文件: pkg/reissue/service.go
// Cancellation/Reissue: sweeps non-terminal transactions for a
// counterparty cancellation or 30-minute inactivity, tears them down in
// foreign-key order (chat messages, then transaction, then
// advertisement), and loops the payout back so Ad Placement picks it up
// again on its next pass.

package reissue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/txn"
)

// staleAfter is how long a non-terminal transaction may sit with no
// activity before it's swept as inactive.
const staleAfter = 30 * time.Minute

type Service struct {
	accounts *account.Registry
	txns     txn.Repository
	ads      advertisement.Repository
	payouts  payout.Repository
	messages chatmsg.Repository
	bus      *eventbus.Bus
}

func NewService(accounts *account.Registry, txns txn.Repository, ads advertisement.Repository, payouts payout.Repository, messages chatmsg.Repository, bus *eventbus.Bus) *Service {
	return &Service{accounts: accounts, txns: txns, ads: ads, payouts: payouts, messages: messages, bus: bus}
}

func (s *Service) Tick(ctx context.Context) error {
	pending, err := s.txns.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("reissue: list non-terminal transactions: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, t := range pending {
		reason, stop := s.shouldStop(ctx, t, now)
		if !stop {
			continue
		}
		if err := s.tearDown(ctx, t, reason); err != nil {
			log.Printf("[Reissue] transaction %d: %v", t.ID, err)
		}
	}
	return nil
}

// shouldStop reports whether t should be cancelled and why: either
// Platform-X reports the order cancelled, or the transaction has sat
// inactive past staleAfter.
func (s *Service) shouldStop(ctx context.Context, t *txn.Transaction, now int64) (txn.Status, bool) {
	if t.OrderID != "" {
		ad, err := s.ads.Get(ctx, t.AdvertisementID)
		if err == nil {
			if h, ok := s.accounts.Get(ad.AccountID); ok {
				if order, err := h.PlatformX.OrderInfo(ctx, t.OrderID); err == nil {
					if order.Status == platformx.OrderStatusCancelled {
						return txn.StatusCancelledByCounter, true
					}
				}
			}
		}
	}
	if now-t.UpdatedAt > staleAfter.Milliseconds() {
		return txn.StatusFailed, true
	}
	return "", false
}

// tearDown deletes the transaction's chat history, the transaction
// itself, and its advertisement, in that foreign-key-respecting order;
// best-effort cancels the live ad on Platform-X; and loops the payout
// back into Ad Placement's queue by clearing HasTransaction.
func (s *Service) tearDown(ctx context.Context, t *txn.Transaction, terminal txn.Status) error {
	applied, err := s.txns.Transition(ctx, t.ID, t.Status, terminal)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", terminal, err)
	}
	if !applied {
		return nil // already moved by a concurrent tick
	}

	ad, err := s.ads.Get(ctx, t.AdvertisementID)
	if err != nil {
		return fmt.Errorf("load advertisement %d: %w", t.AdvertisementID, err)
	}
	if h, ok := s.accounts.Get(ad.AccountID); ok {
		if err := h.PlatformX.CancelAd(ctx, ad.PlatformAdID); err != nil {
			log.Printf("[Reissue] best-effort cancel of ad %s failed: %v", ad.PlatformAdID, err)
		}
	}

	if err := s.messages.DeleteByTxn(ctx, t.ID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	if err := s.txns.Delete(ctx, t.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.publish(eventbus.TypeTransactionDeleted, ad.AccountID, map[string]any{
		"transaction_id": t.ID,
		"status":         string(terminal),
	})
	if err := s.ads.Delete(ctx, ad.ID); err != nil {
		return fmt.Errorf("delete advertisement: %w", err)
	}
	s.publish(eventbus.TypeAdvertisementDeleted, ad.AccountID, map[string]any{
		"advertisement_id": ad.ID,
	})

	if t.PayoutID != 0 {
		if err := s.loopBackPayout(ctx, t.PayoutID); err != nil {
			return fmt.Errorf("loop back payout %d: %w", t.PayoutID, err)
		}
	}
	log.Printf("[Reissue] torn down transaction %d (order %s) -> %s, payout %d requeued", t.ID, t.OrderID, terminal, t.PayoutID)
	return nil
}

// loopBackPayout clears HasTransaction so Ad Placement's next pass over
// accepted-but-unplaced payouts picks this one up again.
func (s *Service) loopBackPayout(ctx context.Context, payoutID int64) error {
	return s.payouts.ClearHasTransaction(ctx, payoutID)
}

func (s *Service) publish(typ eventbus.Type, accountID int64, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.New(typ, eventbus.Room{Account: accountID}, data, time.Now().UnixMilli()))
}
