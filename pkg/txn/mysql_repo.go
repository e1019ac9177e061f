// 文件: pkg/txn/mysql_repo.go
package txn

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

func (r *MySQLRepository) Create(ctx context.Context, t *Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (*Transaction, error) {
	var t Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MySQLRepository) GetByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	var t Transaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MySQLRepository) GetByPayoutID(ctx context.Context, payoutID int64) (*Transaction, error) {
	var t Transaction
	err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MySQLRepository) GetByAdvertisementID(ctx context.Context, adID int64) (*Transaction, error) {
	var t Transaction
	err := r.db.WithContext(ctx).Where("advertisement_id = ?", adID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MySQLRepository) ListNonTerminal(ctx context.Context) ([]*Transaction, error) {
	var out []*Transaction
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelledByCounter, StatusStupid}
	err := r.db.WithContext(ctx).Where("status NOT IN ?", terminal).Find(&out).Error
	return out, err
}

func (r *MySQLRepository) ListByStatus(ctx context.Context, status Status) ([]*Transaction, error) {
	var out []*Transaction
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&out).Error
	return out, err
}

func (r *MySQLRepository) ListWithOrderIDs(ctx context.Context) ([]*Transaction, error) {
	var out []*Transaction
	err := r.db.WithContext(ctx).Where("order_id <> ''").Find(&out).Error
	return out, err
}

func (r *MySQLRepository) LinkOrder(ctx context.Context, adID int64, orderID string, newStatus Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("advertisement_id = ? AND order_id = ''", adID).
		Updates(map[string]any{
			"order_id":   orderID,
			"status":     newStatus,
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Transition is the CAS primitive every settlement component builds on: the
// row only moves if it is still sitting at expected, exactly as
// pkg/fund/balance_repo.go's UpdateBalanceWithVersion guards on version.
func (r *MySQLRepository) Transition(ctx context.Context, id int64, expected, to Status) (bool, error) {
	if !Allowed(expected, to) {
		return false, ErrIllegalTransition
	}
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MySQLRepository) ForceComplete(ctx context.Context, id int64, reason string) (bool, error) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelledByCounter, StatusStupid}
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status NOT IN ?", id, terminal).
		Updates(map[string]any{
			"status":         StatusCompleted,
			"failure_reason": reason,
			"updated_at":     time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MySQLRepository) SetChatStep(ctx context.Context, id int64, expectedStep, newStep int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND chat_step = ?", id, expectedStep).
		Updates(map[string]any{
			"chat_step":  newStep,
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MySQLRepository) SetFailureReason(ctx context.Context, id int64, reason string) error {
	return r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failure_reason": reason,
			"updated_at":     time.Now().UnixMilli(),
		}).Error
}

func (r *MySQLRepository) Flag(ctx context.Context, id int64, flagged bool) error {
	return r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ?", id).
		Update("flagged_review", flagged).Error
}

func (r *MySQLRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Transaction{}).Error
}
