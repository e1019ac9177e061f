// 文件: pkg/payout/model.go
// Payout: a fiat disbursement surfaced by Platform-D.

package payout

import "time"

// Decision records what happened to a payout at acceptance time.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Payout is the settlement-side record of one Platform-D disbursement.
type Payout struct {
	ID           int64  `gorm:"primaryKey;column:id"`
	ExternalID   string `gorm:"column:external_id;uniqueIndex"` // Platform-D id
	AccountID    int64  `gorm:"column:account_id;index"`
	AmountMinor  int64  `gorm:"column:amount_minor"` // 0 until revealed by accept()
	Wallet       string `gorm:"column:wallet"`       // recipient card/phone/wallet
	Bank         string `gorm:"column:bank"`
	RecipientName string `gorm:"column:recipient_name"`
	ExternalStatus int  `gorm:"column:external_status"` // Platform-D status code
	Decision     Decision `gorm:"column:decision"`
	AcceptedAt   int64  `gorm:"column:accepted_at"` // unix ms, 0 until accepted
	HasTransaction bool `gorm:"column:has_transaction"` // denormalized: Ad Placement has already built a Transaction
	ReceiptID    int64  `gorm:"column:receipt_id"` // 0 until a Receipt matches this payout

	CreatedAt int64 `gorm:"column:created_at"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Payout) TableName() string {
	return "payouts"
}

// AmountRevealed reports whether accept() has populated the amount. A
// zero or missing amount must never be silently substituted.
func (p *Payout) AmountRevealed() bool {
	return p.AmountMinor > 0
}

func New(id int64, externalID string, accountID int64, externalStatus int) *Payout {
	now := time.Now().UnixMilli()
	return &Payout{
		ID:             id,
		ExternalID:     externalID,
		AccountID:      accountID,
		ExternalStatus: externalStatus,
		Decision:       DecisionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
