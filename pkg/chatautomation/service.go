// 文件: pkg/chatautomation/service.go
package chatautomation

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
	"github.com/itrader/agent/pkg/txn"
)

type Service struct {
	accounts *account.Registry
	txns     txn.Repository
	ads      advertisement.Repository
	messages chatmsg.Repository
	payouts  payout.Repository
	bus      *eventbus.Bus
}

func NewService(accounts *account.Registry, txns txn.Repository, ads advertisement.Repository, messages chatmsg.Repository, payouts payout.Repository, bus *eventbus.Bus) *Service {
	return &Service{accounts: accounts, txns: txns, ads: ads, messages: messages, payouts: payouts, bus: bus}
}

// Tick advances every non-terminal, order-linked Transaction at most one
// step. A Transaction with no matching step (chat exhausted, or never
// linked to an order yet) is left untouched.
func (s *Service) Tick(ctx context.Context) error {
	linked, err := s.txns.ListWithOrderIDs(ctx)
	if err != nil {
		return fmt.Errorf("chatautomation: list linked transactions: %w", err)
	}
	for _, t := range linked {
		if t.Status.Terminal() {
			continue
		}
		if err := s.advance(ctx, t); err != nil {
			log.Printf("[ChatAutomation] transaction %d: %v", t.ID, err)
		}
	}
	return nil
}

func (s *Service) advance(ctx context.Context, t *txn.Transaction) error {
	step, ok := ForStep(t.ChatStep)
	if !ok {
		return nil // script exhausted
	}

	latest, err := s.messages.LatestByTxn(ctx, t.ID)
	if err != nil {
		latest = nil // no messages synced yet; always() still applies, conditional steps wait
	}

	var p *payout.Payout
	if t.PayoutID != 0 {
		p, err = s.payouts.Get(ctx, t.PayoutID)
		if err != nil {
			p = nil // loaded best-effort; bank confirmation simply can't match yet
		}
	}

	if step.StupidClassifier != nil && step.StupidClassifier(latest, t, p) {
		return s.goStupid(ctx, t, p)
	}

	if !step.Classifier(latest, t, p) {
		return nil
	}

	h, err := s.handleFor(ctx, t)
	if err != nil {
		return err
	}

	reply := step.Reply
	if step.ReplyFn != nil {
		reply = step.ReplyFn(p)
	}

	if reply != "" {
		token := idgen.Token(t.ID, fmt.Sprintf("chat-step-%d", step.FromStep))
		messageID, err := h.PlatformX.SendMessage(ctx, t.OrderID, reply, token)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		sent := chatmsg.New(idgen.Generate(), t.ID, messageID, chatmsg.SenderUs, reply, time.Now().UnixMilli())
		if err := s.messages.Upsert(ctx, sent); err != nil {
			return fmt.Errorf("record sent message: %w", err)
		}
	}

	applied, err := s.txns.SetChatStep(ctx, t.ID, step.FromStep, step.ToStep)
	if err != nil {
		return fmt.Errorf("advance chat step: %w", err)
	}
	if !applied {
		return nil // another tick already advanced it; nothing more to do
	}
	if txn.Allowed(t.Status, step.NewStatus) {
		if _, err := s.txns.Transition(ctx, t.ID, t.Status, step.NewStatus); err != nil {
			return fmt.Errorf("advance status: %w", err)
		}
		s.publish(eventbus.TypeTransactionUpdated, h.AccountID, map[string]any{
			"transaction_id": t.ID,
			"status":         string(step.NewStatus),
		})
	}
	log.Printf("[ChatAutomation] transaction %d advanced to step %d", t.ID, step.ToStep)
	return nil
}

// goStupid transitions t to the terminal stupid state on disqualifying
// counterparty behaviour (wrong bank, "no" to physical person),
// best-effort cancels its ad on Platform-X, marks the local
// Advertisement deleted, and loops the payout back into Ad Placement's
// queue, the same consequence cancellation/reissue produces for a torn
// down transaction — but the transaction row itself stays, recording
// stupid as its terminal status.
func (s *Service) goStupid(ctx context.Context, t *txn.Transaction, p *payout.Payout) error {
	if !txn.Allowed(t.Status, txn.StatusStupid) {
		return nil
	}
	applied, err := s.txns.Transition(ctx, t.ID, t.Status, txn.StatusStupid)
	if err != nil {
		return fmt.Errorf("transition to stupid: %w", err)
	}
	if !applied {
		return nil
	}
	log.Printf("[ChatAutomation] transaction %d marked stupid (unknown counterparty behaviour)", t.ID)

	ad, err := s.ads.Get(ctx, t.AdvertisementID)
	if err != nil {
		return fmt.Errorf("load advertisement %d: %w", t.AdvertisementID, err)
	}
	if h, ok := s.accounts.Get(ad.AccountID); ok {
		if err := h.PlatformX.CancelAd(ctx, ad.PlatformAdID); err != nil {
			log.Printf("[ChatAutomation] best-effort cancel of ad %s failed: %v", ad.PlatformAdID, err)
		}
	}
	if err := s.ads.SetStatus(ctx, ad.ID, advertisement.StatusDeleted); err != nil {
		log.Printf("[ChatAutomation] mark advertisement %d deleted: %v", ad.ID, err)
	}
	s.publish(eventbus.TypeAdvertisementDeleted, ad.AccountID, map[string]any{
		"advertisement_id": ad.ID,
	})

	if p != nil {
		if err := s.payouts.ClearHasTransaction(ctx, p.ID); err != nil {
			return fmt.Errorf("loop back payout %d: %w", p.ID, err)
		}
	}
	s.publish(eventbus.TypeTransactionUpdated, ad.AccountID, map[string]any{
		"transaction_id": t.ID,
		"status":         string(txn.StatusStupid),
	})
	return nil
}

// handleFor resolves the account that owns t's advertisement, so a
// multi-account deployment always replies from the correct identity.
func (s *Service) handleFor(ctx context.Context, t *txn.Transaction) (*account.Handle, error) {
	ad, err := s.ads.Get(ctx, t.AdvertisementID)
	if err != nil {
		return nil, fmt.Errorf("load advertisement %d: %w", t.AdvertisementID, err)
	}
	h, ok := s.accounts.Get(ad.AccountID)
	if !ok {
		return nil, fmt.Errorf("no registered account %d", ad.AccountID)
	}
	return h, nil
}

func (s *Service) publish(typ eventbus.Type, accountID int64, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.New(typ, eventbus.Room{Account: accountID}, data, time.Now().UnixMilli()))
}
