// 文件: pkg/receipt/service.go
// Receipt Processor: polls a trusted inbox for PDF receipts, parses
// each into Fields, stores it, and matches it against pending payouts.

package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/email"
	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/txn"
	"gorm.io/gorm"
)

// TextExtractor turns raw PDF bytes into the text Parse operates on.
// PDF layout extraction itself is an external collaborator, not
// reimplemented here.
type TextExtractor func(pdfBytes []byte) (string, error)

type Service struct {
	email      email.Client
	inbox      string
	trusted    []string
	extract    TextExtractor
	receipts   Repository
	payouts    payout.Repository
	txns       txn.Repository
	ads        advertisement.Repository
	bus        *eventbus.Bus
	lastSeenID string
}

func NewService(client email.Client, inbox string, trustedDomains []string, extract TextExtractor, receipts Repository, payouts payout.Repository, txns txn.Repository, ads advertisement.Repository, bus *eventbus.Bus) *Service {
	return &Service{
		email:    client,
		inbox:    inbox,
		trusted:  trustedDomains,
		extract:  extract,
		receipts: receipts,
		payouts:  payouts,
		txns:     txns,
		ads:      ads,
		bus:      bus,
	}
}

// Tick downloads and parses any new trusted-sender message's PDF
// attachments, then attempts to match every unprocessed Receipt against
// every unmatched accepted Payout.
func (s *Service) Tick(ctx context.Context) error {
	if err := s.ingest(ctx); err != nil {
		return err
	}
	return s.matchAll(ctx)
}

func (s *Service) ingest(ctx context.Context) error {
	messages, err := s.email.ListMessagesSince(ctx, s.inbox, s.lastSeenID)
	if err != nil {
		return fmt.Errorf("receipt: list messages: %w", err)
	}
	for _, m := range messages {
		s.lastSeenID = m.ID
		if !email.TrustedSender(m.From, s.trusted) {
			continue
		}
		for _, a := range m.Attachments {
			if err := s.ingestAttachment(ctx, m, a); err != nil {
				log.Printf("[ReceiptProcessor] message %s attachment %s: %v", m.ID, a.ID, err)
			}
		}
	}
	return nil
}

func (s *Service) ingestAttachment(ctx context.Context, m email.Message, a email.Attachment) error {
	raw, err := s.email.DownloadAttachment(ctx, s.inbox, m.ID, a.ID)
	if err != nil {
		return fmt.Errorf("download attachment: %w", err)
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	if existing, err := s.receipts.GetByEmailMessageID(ctx, m.ID); err == nil && existing.FileHash == hash {
		return nil // already ingested, and the file hasn't changed since
	}

	text, err := s.extract(raw)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	r := New(idgen.Generate(), m.ID, hash, text)
	fields, parseErr := Parse(text)
	if parseErr != nil {
		r.ParseError = parseErr.Error()
	} else {
		r.ApplyFields(fields)
	}
	if err := s.receipts.Create(ctx, r); err != nil {
		return fmt.Errorf("store receipt: %w", err)
	}
	return nil
}

// MatchPending re-runs the matcher over every unprocessed Receipt
// without ingesting new mail first. It is the scheduled driver behind
// the "successer" task: on every newly accepted payout, re-evaluating
// already-stored but previously unmatched receipts can surface a match
// that arrived before the payout did.
func (s *Service) MatchPending(ctx context.Context) error {
	return s.matchAll(ctx)
}

func (s *Service) matchAll(ctx context.Context) error {
	unprocessed, err := s.receipts.ListUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("receipt: list unprocessed: %w", err)
	}
	for _, r := range unprocessed {
		if err := s.matchOne(ctx, r); err != nil {
			log.Printf("[ReceiptProcessor] receipt %d: %v", r.ID, err)
		}
	}
	return nil
}

// matchOne joins one Receipt against every unmatched accepted Payout on
// (amount, bank, recipient-identifier, recipient-name) with
// receipt-timestamp >= payout accepted-at; the first qualifying Payout
// wins.
func (s *Service) matchOne(ctx context.Context, r *Receipt) error {
	candidates, err := s.payouts.ListAcceptedUnmatchedReceipt(ctx)
	if err != nil {
		return fmt.Errorf("list candidate payouts: %w", err)
	}
	for _, p := range candidates {
		if !matches(r, p) {
			continue
		}
		appliedPayout, err := s.payouts.MatchReceipt(ctx, p.ID, r.ID)
		if err != nil {
			return fmt.Errorf("match payout %d: %w", p.ID, err)
		}
		if !appliedPayout {
			continue // another tick claimed this payout first
		}
		appliedReceipt, err := s.receipts.MarkMatched(ctx, r.ID, p.ID)
		if err != nil {
			return fmt.Errorf("mark receipt %d matched: %w", r.ID, err)
		}
		if !appliedReceipt {
			return nil // a concurrent tick already matched this receipt to something
		}
		return s.advanceTransaction(ctx, p.ID)
	}
	return nil
}

func matches(r *Receipt, p *payout.Payout) bool {
	if r.DateTime < p.AcceptedAt {
		return false
	}
	if r.Amount != p.AmountMinor {
		return false
	}
	if r.RecipientBank != p.Bank {
		return false
	}
	if r.Fields().RecipientIdentifier() != p.Wallet {
		return false
	}
	if r.RecipientName != p.RecipientName {
		return false
	}
	return true
}

// advanceTransaction moves the Transaction linked to payoutID to
// check_received. If no Transaction exists yet (the receipt arrived
// before the order was discovered), the match is still recorded on the
// Payout; Order Discovery checks Payout.ReceiptID when it later links
// the order and fires the transition itself.
func (s *Service) advanceTransaction(ctx context.Context, payoutID int64) error {
	t, err := s.txns.GetByPayoutID(ctx, payoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction for payout %d: %w", payoutID, err)
	}
	switch t.Status {
	case txn.StatusWaitingPayment, txn.StatusPaymentReceived:
		if _, err := s.txns.Transition(ctx, t.ID, t.Status, txn.StatusCheckReceived); err != nil {
			return fmt.Errorf("transition transaction %d: %w", t.ID, err)
		}
		log.Printf("[ReceiptProcessor] transaction %d -> check_received", t.ID)
		s.publish(ctx, t, map[string]any{
			"transaction_id": t.ID,
			"status":         string(txn.StatusCheckReceived),
		})
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t *txn.Transaction, data any) {
	if s.bus == nil {
		return
	}
	accountID := int64(0)
	if ad, err := s.ads.Get(ctx, t.AdvertisementID); err == nil {
		accountID = ad.AccountID
	}
	s.bus.Publish(eventbus.New(eventbus.TypeTransactionUpdated, eventbus.Room{Account: accountID}, data, time.Now().UnixMilli()))
}
