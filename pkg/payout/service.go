// 文件: pkg/payout/service.go
// Payout Intake: polls Platform-D for pending payouts, optionally
// prompts an operator, accepts them, and persists the revealed fields.

package payout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/platformd"
)

// PendingStatus is Platform-D's "pending" status code.
const PendingStatus = 4

// AcceptedWaitingStatus is the "accepted-but-unbuilt" status synced on
// restart so a crash does not lose context.
const AcceptedWaitingStatus = 5

// Prompter is the optional injected decision procedure for manual mode.
// The default AutoApprove always accepts.
type Prompter interface {
	ShouldAccept(ctx context.Context, p RawCandidate) bool
}

// RawCandidate is what a Prompter is shown before acceptance.
type RawCandidate struct {
	ExternalID string
	AccountID  int64
}

type autoApprove struct{}

func (autoApprove) ShouldAccept(ctx context.Context, p RawCandidate) bool { return true }

// AutoApprove is the non-interactive default, replacing a
// terminal-prompt coupling with an injectable decision procedure.
var AutoApprove Prompter = autoApprove{}

type Intake struct {
	repo     Repository
	prompter Prompter
	manual   bool
}

func NewIntake(repo Repository, prompter Prompter, manual bool) *Intake {
	if prompter == nil {
		prompter = AutoApprove
	}
	return &Intake{repo: repo, prompter: prompter, manual: manual}
}

// PollAccount is Payout Intake's per-account tick: list pending payouts, accept the
// ones not yet known, and resync accepted-waiting payouts so a restart
// does not lose context.
func (in *Intake) PollAccount(ctx context.Context, client platformd.Client, accountID int64) error {
	if err := in.acceptNewPending(ctx, client, accountID); err != nil {
		return err
	}
	return in.syncAcceptedWaiting(ctx, client, accountID)
}

func (in *Intake) acceptNewPending(ctx context.Context, client platformd.Client, accountID int64) error {
	page, err := client.ListPayouts(ctx, 1, []int{PendingStatus})
	if err != nil {
		return fmt.Errorf("payout: list pending: %w", err)
	}

	for _, raw := range page.Data {
		existing, err := in.repo.GetByExternalID(ctx, raw.ExternalID)
		if err == nil && existing != nil {
			continue // already known, nothing to accept again
		}

		if in.manual {
			if !in.prompter.ShouldAccept(ctx, RawCandidate{ExternalID: raw.ExternalID, AccountID: accountID}) {
				log.Printf("[PayoutIntake] operator rejected payout %s", raw.ExternalID)
				continue
			}
		}

		p := New(idgen.Generate(), raw.ExternalID, accountID, raw.Status)
		if err := in.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("payout: persist %s: %w", raw.ExternalID, err)
		}

		accepted, err := client.Accept(ctx, raw.ExternalID)
		if err != nil {
			log.Printf("[PayoutIntake] accept %s failed: %v", raw.ExternalID, err)
			continue
		}

		if accepted.AmountMinor <= 0 {
			log.Printf("[PayoutIntake] WARNING: payout %s accepted with zero/missing amount, saving as-is", raw.ExternalID)
		}

		now := time.Now().UnixMilli()
		if err := in.repo.Accept(ctx, p.ID, accepted.AmountMinor, accepted.Wallet, accepted.Bank, accepted.RecipientName, now); err != nil {
			return fmt.Errorf("payout: record accept %s: %w", raw.ExternalID, err)
		}
		if err := in.repo.UpdateExternalStatus(ctx, p.ID, accepted.Status); err != nil {
			return err
		}
		log.Printf("[PayoutIntake] accepted payout %s amount=%d", raw.ExternalID, accepted.AmountMinor)
	}
	return nil
}

// syncAcceptedWaiting re-reads Platform-D's status-5 payouts so a process
// restart does not lose context.
func (in *Intake) syncAcceptedWaiting(ctx context.Context, client platformd.Client, accountID int64) error {
	page, err := client.ListPayouts(ctx, 1, []int{AcceptedWaitingStatus})
	if err != nil {
		return fmt.Errorf("payout: list accepted-waiting: %w", err)
	}
	for _, raw := range page.Data {
		existing, err := in.repo.GetByExternalID(ctx, raw.ExternalID)
		if err != nil || existing == nil {
			continue // never accepted by us; nothing to resync
		}
		if err := in.repo.UpdateExternalStatus(ctx, existing.ID, raw.Status); err != nil {
			return err
		}
	}
	return nil
}
