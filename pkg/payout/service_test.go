package payout

import (
	"context"
	"testing"

	"github.com/itrader/agent/pkg/platformd"
)

func TestIntakeAcceptsNewPendingPayout(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	client := platformd.NewFakeClient()
	client.Payouts = []platformd.RawPayout{
		{ExternalID: "P1", Status: PendingStatus},
	}

	in := NewIntake(repo, nil, false)
	if err := in.PollAccount(ctx, client, 7); err != nil {
		t.Fatal(err)
	}

	p, err := repo.GetByExternalID(ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Decision != DecisionAccepted {
		t.Fatalf("expected payout to be accepted, got %s", p.Decision)
	}
	if !client.Accepted["P1"] {
		t.Fatal("expected client.Accept to have been called")
	}
}

func TestIntakeSkipsAlreadyKnownPayout(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	client := platformd.NewFakeClient()
	client.Payouts = []platformd.RawPayout{{ExternalID: "P1", Status: PendingStatus}}

	existing := New(999, "P1", 7, PendingStatus)
	repo.Create(ctx, existing)

	in := NewIntake(repo, nil, false)
	if err := in.PollAccount(ctx, client, 7); err != nil {
		t.Fatal(err)
	}
	if client.Accepted["P1"] {
		t.Fatal("should not re-accept an already-known payout")
	}
}

func TestManualModeRespectsPrompterRejection(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	client := platformd.NewFakeClient()
	client.Payouts = []platformd.RawPayout{{ExternalID: "P1", Status: PendingStatus}}

	reject := prompterFunc(func(ctx context.Context, p RawCandidate) bool { return false })
	in := NewIntake(repo, reject, true)
	if err := in.PollAccount(ctx, client, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByExternalID(ctx, "P1"); err == nil {
		t.Fatal("expected rejected payout to not be persisted")
	}
}

type prompterFunc func(ctx context.Context, p RawCandidate) bool

func (f prompterFunc) ShouldAccept(ctx context.Context, p RawCandidate) bool { return f(ctx, p) }
