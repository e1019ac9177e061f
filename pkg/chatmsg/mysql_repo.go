// 文件: pkg/chatmsg/mysql_repo.go
package chatmsg

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Upsert(ctx context.Context, m *ChatMessage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(m).Error
}

func (r *MySQLRepository) ListByTxn(ctx context.Context, txnID int64) ([]*ChatMessage, error) {
	var out []*ChatMessage
	err := r.db.WithContext(ctx).
		Where("txn_id = ?", txnID).
		Order("sent_at ASC").
		Find(&out).Error
	return out, err
}

func (r *MySQLRepository) LatestByTxn(ctx context.Context, txnID int64) (*ChatMessage, error) {
	var m ChatMessage
	err := r.db.WithContext(ctx).
		Where("txn_id = ?", txnID).
		Order("sent_at DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MySQLRepository) DeleteByTxn(ctx context.Context, txnID int64) error {
	return r.db.WithContext(ctx).Where("txn_id = ?", txnID).Delete(&ChatMessage{}).Error
}
