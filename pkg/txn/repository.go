// 文件: pkg/txn/repository.go
package txn

import (
	"context"
	"errors"
)

// ErrStaleTransition names the case where the row's current status no
// longer matches the expected one. Transition does not return it: it
// reports a stale read as (applied=false, nil).
var ErrStaleTransition = errors.New("txn: stale transition")

// ErrIllegalTransition is returned when from->to is not in the state
// machine's edge set at all (as opposed to merely being stale).
var ErrIllegalTransition = errors.New("txn: illegal transition")

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	GetByPayoutID(ctx context.Context, payoutID int64) (*Transaction, error)
	GetByAdvertisementID(ctx context.Context, adID int64) (*Transaction, error)
	ListNonTerminal(ctx context.Context) ([]*Transaction, error)
	ListByStatus(ctx context.Context, status Status) ([]*Transaction, error)
	ListWithOrderIDs(ctx context.Context) ([]*Transaction, error)

	// LinkOrder CAS-attaches a Platform-X order id to a Transaction that
	// does not have one yet and simultaneously transitions its status, so
	// the link and the transition commit as one atomic step.
	LinkOrder(ctx context.Context, adID int64, orderID string, newStatus Status) (bool, error)

	// Transition performs a compare-and-swap status change: the row is
	// only updated if its current status equals expected. Returns
	// (applied=false, nil) on a stale read, never an error — the caller
	// re-reads and may retry from the fresh state.
	Transition(ctx context.Context, id int64, expected, to Status) (bool, error)

	// ForceComplete is the admin-only "release money" escape hatch: it
	// sets a non-terminal transaction straight to completed regardless
	// of the state machine's edge set, for cases like an open dispute
	// that the normal flow never resolves. It refuses an already-terminal
	// row rather than re-completing it.
	ForceComplete(ctx context.Context, id int64, reason string) (bool, error)

	// SetChatStep CAS-advances the chat step from expectedStep to
	// newStep; it does not change the status. Used by chat automation to
	// make sends idempotent under retries.
	SetChatStep(ctx context.Context, id int64, expectedStep, newStep int) (bool, error)

	SetFailureReason(ctx context.Context, id int64, reason string) error
	Flag(ctx context.Context, id int64, flagged bool) error

	// Delete removes the transaction row. Callers are responsible for
	// deleting dependent ChatMessage rows first to respect the foreign key.
	Delete(ctx context.Context, id int64) error
}
