// 文件: pkg/account/mysql_repo.go
package account

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

func (r *MySQLRepository) Create(ctx context.Context, a *Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (*Account, error) {
	var a Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MySQLRepository) ListEnabled(ctx context.Context) ([]*Account, error) {
	var out []*Account
	err := r.db.WithContext(ctx).Where("disabled = ?", false).Find(&out).Error
	return out, err
}

func (r *MySQLRepository) SetSessionCookie(ctx context.Context, id int64, cookie string) error {
	return r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"session_cookie": cookie, "updated_at": time.Now().UnixMilli()}).Error
}

func (r *MySQLRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	return r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"disabled": disabled, "updated_at": time.Now().UnixMilli()}).Error
}
