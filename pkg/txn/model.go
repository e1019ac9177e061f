// 文件: pkg/txn/model.go
// Transaction: the unit of work linking one Payout, one Advertisement,
// and (after discovery) one Platform-X order.

package txn

import "time"

// Status is the transaction state machine's node set.
type Status string

const (
	StatusPending             Status = "pending"
	StatusChatStarted         Status = "chat_started"
	StatusWaitingPayment      Status = "waiting_payment"
	StatusPaymentReceived     Status = "payment_received"
	StatusCheckReceived       Status = "check_received"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusCancelledByCounter  Status = "cancelled_by_counterparty"
	StatusStupid              Status = "stupid"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelledByCounter, StatusStupid:
		return true
	default:
		return false
	}
}

// transitions enumerates the allowed edges of the state machine.
// Terminal states intentionally have no outgoing edges, including to
// themselves: re-applying a transition onto a state that already moved is
// rejected by CAS, not by this table.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusChatStarted:        true,
		StatusWaitingPayment:     true,
		StatusCancelledByCounter: true,
		StatusFailed:             true,
		StatusStupid:             true,
	},
	StatusChatStarted: {
		StatusWaitingPayment:     true,
		StatusCheckReceived:      true, // a receipt may already be matched before the order even links
		StatusCancelledByCounter: true,
		StatusFailed:             true,
		StatusStupid:             true,
	},
	StatusWaitingPayment: {
		StatusPaymentReceived:    true,
		StatusCheckReceived:      true, // a receipt can match before the counterparty ever clicks "paid"
		StatusCancelledByCounter: true,
		StatusFailed:             true,
		StatusStupid:             true,
	},
	StatusPaymentReceived: {
		StatusCheckReceived:      true,
		StatusCancelledByCounter: true,
		StatusFailed:             true,
	},
	StatusCheckReceived: {
		StatusCompleted:          true,
		StatusCancelledByCounter: true,
		StatusFailed:             true,
	},
}

// Allowed reports whether from -> to is a legal edge of the state
// machine, independent of whatever is currently persisted.
func Allowed(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	return transitions[from][to]
}

// Transaction is the store-owned record; components hold TransactionID
// and re-read rather than keep a live object graph.
type Transaction struct {
	ID       int64 `gorm:"primaryKey;column:id"`
	// PayoutID is 0 for an orphan transaction created when an order's
	// advertisement could not be resolved to any payout; Ad Placement
	// enforces the real one-payout-one-transaction rule at the
	// application layer via Payout.HasTransaction, so this is a plain
	// index rather than a unique one.
	PayoutID        int64  `gorm:"column:payout_id;index"`
	AdvertisementID int64  `gorm:"column:advertisement_id;uniqueIndex"`
	OrderID         string `gorm:"column:order_id;index"` // Platform-X order id, empty until discovered
	Status          Status `gorm:"column:status;index"`
	ChatStep        int    `gorm:"column:chat_step"`
	FailureReason   string `gorm:"column:failure_reason"`
	FlaggedReview   bool   `gorm:"column:flagged_review"` // placeholder ad, orphan order, etc.

	CreatedAt int64 `gorm:"column:created_at"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// NewPending builds a fresh Transaction linking payoutID and adID, the
// shape Ad Placement creates.
func NewPending(id, payoutID, adID int64) *Transaction {
	now := time.Now().UnixMilli()
	return &Transaction{
		ID:              id,
		PayoutID:        payoutID,
		AdvertisementID: adID,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
