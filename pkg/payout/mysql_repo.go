// 文件: pkg/payout/mysql_repo.go
package payout

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Create(ctx context.Context, p *Payout) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (*Payout, error) {
	var p Payout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MySQLRepository) GetByExternalID(ctx context.Context, externalID string) (*Payout, error) {
	var p Payout
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MySQLRepository) ListAccepted(ctx context.Context) ([]*Payout, error) {
	var out []*Payout
	err := r.db.WithContext(ctx).Where("decision = ?", DecisionAccepted).Find(&out).Error
	return out, err
}

func (r *MySQLRepository) ListAcceptedWithoutTransaction(ctx context.Context) ([]*Payout, error) {
	var out []*Payout
	err := r.db.WithContext(ctx).
		Where("decision = ? AND has_transaction = ?", DecisionAccepted, false).
		Find(&out).Error
	return out, err
}

func (r *MySQLRepository) ListAcceptedUnmatchedReceipt(ctx context.Context) ([]*Payout, error) {
	var out []*Payout
	err := r.db.WithContext(ctx).
		Where("decision = ? AND receipt_id = ?", DecisionAccepted, 0).
		Find(&out).Error
	return out, err
}

func (r *MySQLRepository) MatchReceipt(ctx context.Context, id, receiptID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Payout{}).
		Where("id = ? AND receipt_id = ?", id, 0).
		Updates(map[string]any{
			"receipt_id": receiptID,
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MySQLRepository) ListByExternalStatus(ctx context.Context, status int) ([]*Payout, error) {
	var out []*Payout
	err := r.db.WithContext(ctx).Where("external_status = ?", status).Find(&out).Error
	return out, err
}

func (r *MySQLRepository) Accept(ctx context.Context, id int64, amountMinor int64, wallet, bank, recipientName string, acceptedAt int64) error {
	return r.db.WithContext(ctx).
		Model(&Payout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"amount_minor":   amountMinor,
			"wallet":         wallet,
			"bank":           bank,
			"recipient_name": recipientName,
			"decision":       DecisionAccepted,
			"accepted_at":    acceptedAt,
			"updated_at":     time.Now().UnixMilli(),
		}).Error
}

func (r *MySQLRepository) UpdateExternalStatus(ctx context.Context, id int64, status int) error {
	return r.db.WithContext(ctx).
		Model(&Payout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"external_status": status,
			"updated_at":      time.Now().UnixMilli(),
		}).Error
}

func (r *MySQLRepository) MarkHasTransaction(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&Payout{}).
		Where("id = ?", id).
		Update("has_transaction", true).Error
}

func (r *MySQLRepository) ClearHasTransaction(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&Payout{}).
		Where("id = ?", id).
		Update("has_transaction", false).Error
}
