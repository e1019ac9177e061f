// 文件: pkg/payout/repository.go
package payout

import "context"

type Repository interface {
	Create(ctx context.Context, p *Payout) error
	Get(ctx context.Context, id int64) (*Payout, error)
	GetByExternalID(ctx context.Context, externalID string) (*Payout, error)
	ListAccepted(ctx context.Context) ([]*Payout, error)
	ListAcceptedWithoutTransaction(ctx context.Context) ([]*Payout, error)
	ListAcceptedUnmatchedReceipt(ctx context.Context) ([]*Payout, error)
	ListByExternalStatus(ctx context.Context, status int) ([]*Payout, error)

	// MatchReceipt CAS-links a Payout to the Receipt that confirmed it;
	// it reports false if the payout was already matched by a
	// concurrent tick, since a Payout may match at most one Receipt.
	MatchReceipt(ctx context.Context, id, receiptID int64) (bool, error)

	// Accept persists the revealed amount/wallet/bank/name from
	// Platform-D's accept() response, and flips Decision to accepted.
	Accept(ctx context.Context, id int64, amountMinor int64, wallet, bank, recipientName string, acceptedAt int64) error
	UpdateExternalStatus(ctx context.Context, id int64, status int) error
	MarkHasTransaction(ctx context.Context, id int64) error

	// ClearHasTransaction loops an already-accepted payout back into Ad
	// Placement's queue after its Transaction was torn down by
	// cancellation/reissue.
	ClearHasTransaction(ctx context.Context, id int64) error
}
