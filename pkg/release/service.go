// 文件: pkg/release/service.go
// Release Engine: every Transaction that reaches check_received gets its
// escrowed crypto released on Platform-X, then moves to completed. A
// release API failure still completes the transaction from the fiat
// side; the error is recorded for manual reconciliation rather than
// left retrying forever.

package release

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/txn"
)

type Service struct {
	accounts *account.Registry
	txns     txn.Repository
	ads      advertisement.Repository
	bus      *eventbus.Bus
}

func NewService(accounts *account.Registry, txns txn.Repository, ads advertisement.Repository, bus *eventbus.Bus) *Service {
	return &Service{accounts: accounts, txns: txns, ads: ads, bus: bus}
}

// Tick releases every Transaction currently sitting in check_received.
func (s *Service) Tick(ctx context.Context) error {
	pending, err := s.txns.ListByStatus(ctx, txn.StatusCheckReceived)
	if err != nil {
		return fmt.Errorf("release: list check_received transactions: %w", err)
	}
	for _, t := range pending {
		if err := s.release(ctx, t); err != nil {
			log.Printf("[ReleaseEngine] transaction %d: %v", t.ID, err)
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, t *txn.Transaction) error {
	ad, err := s.ads.Get(ctx, t.AdvertisementID)
	if err != nil {
		return fmt.Errorf("load advertisement %d: %w", t.AdvertisementID, err)
	}
	h, ok := s.accounts.Get(ad.AccountID)
	if !ok {
		return fmt.Errorf("no registered account %d", ad.AccountID)
	}

	token := idgen.Token(t.ID, "release")
	releaseErr := h.PlatformX.ReleaseOrder(ctx, t.OrderID, token)
	if releaseErr != nil {
		if err := s.txns.SetFailureReason(ctx, t.ID, releaseErr.Error()); err != nil {
			log.Printf("[ReleaseEngine] record release error for %d: %v", t.ID, err)
		}
		log.Printf("[ReleaseEngine] WARNING: release call failed for order %s, completing from the fiat side anyway: %v", t.OrderID, releaseErr)
	}

	applied, err := s.txns.Transition(ctx, t.ID, txn.StatusCheckReceived, txn.StatusCompleted)
	if err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}
	if !applied {
		return nil // already completed by a concurrent tick
	}
	s.publish(eventbus.TypeTransactionUpdated, ad.AccountID, map[string]any{
		"transaction_id": t.ID,
		"status":         string(txn.StatusCompleted),
	})
	if err := s.ads.SetStatus(ctx, ad.ID, advertisement.StatusDeleted); err != nil {
		log.Printf("[ReleaseEngine] mark advertisement %d deleted: %v", ad.ID, err)
	}
	s.publish(eventbus.TypeAdvertisementDeleted, ad.AccountID, map[string]any{
		"advertisement_id": ad.ID,
	})
	return nil
}

func (s *Service) publish(typ eventbus.Type, accountID int64, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.New(typ, eventbus.Room{Account: accountID}, data, time.Now().UnixMilli()))
}

// ForceRelease is the admin-initiated escape hatch: it completes a
// transaction regardless of its current (non-terminal) status, for
// cases the automated flow can't resolve on its own (e.g. a dispute).
func (s *Service) ForceRelease(ctx context.Context, txnID int64, reason string) error {
	applied, err := s.txns.ForceComplete(ctx, txnID, reason)
	if err != nil {
		return fmt.Errorf("force complete transaction %d: %w", txnID, err)
	}
	if !applied {
		return fmt.Errorf("transaction %d is already terminal", txnID)
	}
	log.Printf("[ReleaseEngine] transaction %d force-completed by admin: %s", txnID, reason)
	return nil
}
