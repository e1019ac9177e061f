// 文件: pkg/advertisement/model.go
// Advertisement: a sell ad on Platform-X.

package advertisement

import (
	"strings"
	"time"
)

type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
	StatusDeleted Status = "DELETED"
)

type Advertisement struct {
	ID             int64  `gorm:"primaryKey;column:id"`
	PlatformAdID   string `gorm:"column:platform_ad_id;uniqueIndex"` // or "temp_<orderId>"
	AccountID      int64  `gorm:"column:account_id;index"`
	Side           string `gorm:"column:side"` // SELL only in the happy path
	Asset          string `gorm:"column:asset"`
	Fiat           string `gorm:"column:fiat"`
	UnitPrice      int64  `gorm:"column:unit_price"`
	Quantity       int64  `gorm:"column:quantity"`
	MinAmount      int64  `gorm:"column:min_amount"`
	MaxAmount      int64  `gorm:"column:max_amount"`
	PaymentMethods string `gorm:"column:payment_methods"` // comma-joined set
	Status         Status `gorm:"column:status;index"`
	Placeholder    bool   `gorm:"column:placeholder"` // synthesized temp_ ad, flagged for review

	CreatedAt int64 `gorm:"column:created_at;index"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Advertisement) TableName() string {
	return "advertisements"
}

func (a *Advertisement) PaymentMethodSet() []string {
	if a.PaymentMethods == "" {
		return nil
	}
	return strings.Split(a.PaymentMethods, ",")
}

func joinMethods(methods []string) string {
	return strings.Join(methods, ",")
}

// New builds the Advertisement Ad Placement creates for an accepted
// payout: quantity is the crypto amount that sells for the payout's
// fiat amount at unitPrice (quantity * unitPrice == amountMinor), while
// min/max bound the fiat amount a counterparty can pay.
func New(id int64, platformAdID string, accountID int64, unitPrice, quantity, amountMinor int64, methods []string) *Advertisement {
	now := time.Now().UnixMilli()
	return &Advertisement{
		ID:             id,
		PlatformAdID:   platformAdID,
		AccountID:      accountID,
		Side:           "SELL",
		Asset:          "crypto",
		Fiat:           "RUB",
		UnitPrice:      unitPrice,
		Quantity:       quantity,
		MinAmount:      amountMinor,
		MaxAmount:      amountMinor,
		PaymentMethods: joinMethods(methods),
		Status:         StatusOnline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewPlaceholder builds the synthesized "temp_<orderId>" ad for an
// orphan order that resolves to no known advertisement: the order must
// never be silently dropped.
func NewPlaceholder(id int64, orderID string, accountID int64, amountMinor int64) *Advertisement {
	now := time.Now().UnixMilli()
	return &Advertisement{
		ID:           id,
		PlatformAdID: "temp_" + orderID,
		AccountID:    accountID,
		Side:         "SELL",
		Asset:        "crypto",
		Fiat:         "RUB",
		Quantity:     amountMinor,
		MinAmount:    amountMinor,
		MaxAmount:    amountMinor,
		Status:       StatusOnline,
		Placeholder:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
