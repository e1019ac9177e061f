// 文件: pkg/advertisement/mysql_repo.go
package advertisement

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

func (r *MySQLRepository) Create(ctx context.Context, a *Advertisement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (*Advertisement, error) {
	var a Advertisement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MySQLRepository) GetByPlatformAdID(ctx context.Context, platformAdID string) (*Advertisement, error) {
	var a Advertisement
	err := r.db.WithContext(ctx).Where("platform_ad_id = ?", platformAdID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MySQLRepository) RecentByAccountAndQuantity(ctx context.Context, accountID int64, quantity int64, since int64) ([]*Advertisement, error) {
	var out []*Advertisement
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND quantity = ? AND created_at >= ? AND status = ?", accountID, quantity, since, StatusOnline).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *MySQLRepository) CountActiveByAccount(ctx context.Context, accountID int64) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Advertisement{}).
		Where("account_id = ? AND status = ?", accountID, StatusOnline).
		Count(&count).Error
	return int(count), err
}

func (r *MySQLRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	return r.db.WithContext(ctx).
		Model(&Advertisement{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UnixMilli()}).Error
}

func (r *MySQLRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Advertisement{}).Error
}
