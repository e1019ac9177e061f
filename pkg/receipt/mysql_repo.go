// 文件: pkg/receipt/mysql_repo.go
package receipt

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

func (r *MySQLRepository) Create(ctx context.Context, rc *Receipt) error {
	return r.db.WithContext(ctx).Create(rc).Error
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (*Receipt, error) {
	var rc Receipt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *MySQLRepository) GetByEmailMessageID(ctx context.Context, emailMessageID string) (*Receipt, error) {
	var rc Receipt
	err := r.db.WithContext(ctx).Where("email_message_id = ?", emailMessageID).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *MySQLRepository) ListUnprocessed(ctx context.Context) ([]*Receipt, error) {
	var out []*Receipt
	err := r.db.WithContext(ctx).
		Where("processed = ? AND parse_error = ?", false, "").
		Find(&out).Error
	return out, err
}

func (r *MySQLRepository) MarkMatched(ctx context.Context, id, payoutID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Receipt{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":  true,
			"payout_id":  payoutID,
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MySQLRepository) SetParseError(ctx context.Context, id int64, reason string) error {
	return r.db.WithContext(ctx).
		Model(&Receipt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"parse_error": reason,
			"updated_at":  time.Now().UnixMilli(),
		}).Error
}
