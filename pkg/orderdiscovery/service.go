// 文件: pkg/orderdiscovery/service.go
// Order discovery watches every account's open Platform-X orders, links
// each one to the Transaction its advertisement was created for, and
// mirrors the order's chat history into local storage so chat automation
// never has to re-fetch it. An order whose advertisement cannot be
// resolved is never dropped: it gets a flagged placeholder ad instead.

package orderdiscovery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/ratelimit"
	"github.com/itrader/agent/pkg/txn"
)

// activeOrderStatuses are the Platform-X order states worth polling;
// completed/cancelled orders are handled by release/reissue, not here.
var activeOrderStatuses = []int{
	platformx.OrderStatusPaymentInProcessing,
	platformx.OrderStatusWaitingCoinTransfer,
	platformx.OrderStatusDispute,
}

// recentAdWindow bounds the fallback scan for an ad created around the
// same time as the order, so a stale ad from days ago is never matched.
const recentAdWindow = 30 * time.Minute

type Service struct {
	accounts *account.Registry
	txns     txn.Repository
	ads      advertisement.Repository
	payouts  payout.Repository
	messages chatmsg.Repository
	limiter  ratelimit.Allower
	bus      *eventbus.Bus
}

func NewService(accounts *account.Registry, txns txn.Repository, ads advertisement.Repository, payouts payout.Repository, messages chatmsg.Repository, limiter ratelimit.Allower, bus *eventbus.Bus) *Service {
	return &Service{accounts: accounts, txns: txns, ads: ads, payouts: payouts, messages: messages, limiter: limiter, bus: bus}
}

// Tick polls every registered account once. Errors on one account never
// stop the sweep over the others.
func (s *Service) Tick(ctx context.Context) error {
	for _, h := range s.accounts.All() {
		if err := s.pollAccount(ctx, h); err != nil {
			log.Printf("[OrderDiscovery] account %s: %v", h.Tag, err)
		}
	}
	return nil
}

func (s *Service) pollAccount(ctx context.Context, h *account.Handle) error {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "platformx:list_orders:"+h.Tag, 1, 1, 5*time.Second)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return nil // self-throttled; retry next tick
		}
	}

	orders, err := h.PlatformX.ListPendingOrders(ctx, activeOrderStatuses)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	for _, o := range orders {
		if err := s.processOrder(ctx, h, o); err != nil {
			log.Printf("[OrderDiscovery] order %s: %v", o.OrderID, err)
		}
	}
	return nil
}

func (s *Service) processOrder(ctx context.Context, h *account.Handle, o platformx.Order) error {
	t, err := s.txns.GetByOrderID(ctx, o.OrderID)
	if err != nil {
		t = nil // not yet linked
	}

	if t == nil {
		t, err = s.linkOrder(ctx, h, o)
		if err != nil {
			return fmt.Errorf("resolve advertisement: %w", err)
		}
	}

	return s.syncChat(ctx, h, t.ID, o.OrderID)
}

// linkOrder resolves o's advertisement and attaches the order id to the
// Transaction that ad was created for. The resolution chain is: the
// order's own itemId, then a live order/info lookup for a late-populated
// itemId, then a recent same-account same-amount ad scan, and finally a
// synthesized placeholder so the order is never silently ignored.
func (s *Service) linkOrder(ctx context.Context, h *account.Handle, o platformx.Order) (*txn.Transaction, error) {
	ad, freshlyCreated, err := s.resolveAd(ctx, h, o)
	if err != nil {
		return nil, err
	}

	if freshlyCreated {
		return s.createOrphanTransaction(ctx, ad, o)
	}

	existing, err := s.txns.GetByAdvertisementID(ctx, ad.ID)
	if err != nil || existing == nil {
		return nil, fmt.Errorf("no transaction for advertisement %d", ad.ID)
	}

	if err := s.guardAmount(ctx, h, existing, o); err != nil {
		return nil, err
	}

	applied, err := s.txns.LinkOrder(ctx, ad.ID, o.OrderID, txn.StatusChatStarted)
	if err != nil {
		return nil, fmt.Errorf("link order: %w", err)
	}
	if !applied {
		// another poll won the race or it was already linked; re-read.
		return s.txns.GetByOrderID(ctx, o.OrderID)
	}
	log.Printf("[OrderDiscovery] linked order %s to transaction %d (ad %d)", o.OrderID, existing.ID, ad.ID)
	s.fastForwardIfReceiptAlreadyMatched(ctx, existing)
	return s.txns.Get(ctx, existing.ID)
}

// fastForwardIfReceiptAlreadyMatched handles the receipt-before-order
// ordering: the Receipt Processor may have already matched this
// Transaction's payout while no order existed yet to transition. Once
// the order links and reaches chat_started, the match fires the
// skipped transition immediately instead of waiting on chat automation.
func (s *Service) fastForwardIfReceiptAlreadyMatched(ctx context.Context, t *txn.Transaction) {
	if t.PayoutID == 0 {
		return
	}
	p, err := s.payouts.Get(ctx, t.PayoutID)
	if err != nil || p.ReceiptID == 0 {
		return
	}
	if _, err := s.txns.Transition(ctx, t.ID, txn.StatusChatStarted, txn.StatusCheckReceived); err != nil {
		log.Printf("[OrderDiscovery] fast-forward transaction %d to check_received: %v", t.ID, err)
	}
}

// createOrphanTransaction handles an order whose advertisement could not
// be resolved by any means: it gets its own flagged Transaction, with no
// payout, so review tooling can find and reconcile it manually.
func (s *Service) createOrphanTransaction(ctx context.Context, ad *advertisement.Advertisement, o platformx.Order) (*txn.Transaction, error) {
	t := txn.NewPending(idgen.Generate(), 0, ad.ID)
	t.OrderID = o.OrderID
	t.Status = txn.StatusChatStarted
	t.FlaggedReview = true
	if err := s.txns.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persist orphan transaction: %w", err)
	}
	log.Printf("[OrderDiscovery] WARNING: order %s has no resolvable advertisement, created flagged transaction %d", o.OrderID, t.ID)
	return t, nil
}

func (s *Service) guardAmount(ctx context.Context, h *account.Handle, t *txn.Transaction, o platformx.Order) error {
	p, err := s.payouts.Get(ctx, t.PayoutID)
	if err != nil {
		return fmt.Errorf("load payout %d: %w", t.PayoutID, err)
	}
	if diff := o.Amount - p.AmountMinor; diff > 1 || diff < -1 {
		msg := fmt.Sprintf("order amount %d does not match payout amount %d, flagging for review", o.Amount, p.AmountMinor)
		if s.bus != nil {
			s.bus.Publish(eventbus.New(eventbus.TypeOperatorAlert, eventbus.Room{Account: h.AccountID}, eventbus.OperatorAlert{
				Kind:          "AMOUNT_MISMATCH",
				Message:       msg,
				TransactionID: t.ID,
			}, time.Now().UnixMilli()))
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// resolveAd returns (ad, freshlyCreated, err). freshlyCreated is true only
// for the synthesized placeholder path, so the caller knows there is no
// existing Transaction to look up for this ad yet.
func (s *Service) resolveAd(ctx context.Context, h *account.Handle, o platformx.Order) (*advertisement.Advertisement, bool, error) {
	if o.ItemID != "" {
		if ad, err := s.ads.GetByPlatformAdID(ctx, o.ItemID); err == nil {
			return ad, false, nil
		}
	}

	if fresh, err := h.PlatformX.OrderInfo(ctx, o.OrderID); err == nil && fresh.ItemID != "" {
		if ad, err := s.ads.GetByPlatformAdID(ctx, fresh.ItemID); err == nil {
			return ad, false, nil
		}
	}

	since := time.Now().Add(-recentAdWindow).UnixMilli()
	candidates, err := s.ads.RecentByAccountAndQuantity(ctx, h.AccountID, o.Amount, since)
	if err == nil && len(candidates) > 0 {
		return candidates[0], false, nil
	}

	placeholder := advertisement.NewPlaceholder(idgen.Generate(), o.OrderID, h.AccountID, o.Amount)
	if err := s.ads.Create(ctx, placeholder); err != nil {
		return nil, false, fmt.Errorf("persist placeholder ad: %w", err)
	}
	log.Printf("[OrderDiscovery] WARNING: no advertisement resolved for order %s, created placeholder %s", o.OrderID, placeholder.PlatformAdID)
	return placeholder, true, nil
}

func (s *Service) syncChat(ctx context.Context, h *account.Handle, txnID int64, orderID string) error {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "platformx:list_messages:"+orderID, 1, 1, 3*time.Second)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return nil // self-throttled; retry next tick
		}
	}
	msgs, err := h.PlatformX.ListMessages(ctx, orderID, 50)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, m := range msgs {
		sender := chatmsg.ClassifySender(m.UserID, h.PlatformXUserID, m.MsgType == 0)
		rec := chatmsg.New(idgen.Generate(), txnID, m.MessageID, sender, m.Body, m.SentAt)
		if err := s.messages.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("upsert message %s: %w", m.MessageID, err)
		}
	}
	return nil
}
