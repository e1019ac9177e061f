// 文件: pkg/advertisement/repository.go
package advertisement

import "context"

type Repository interface {
	Create(ctx context.Context, a *Advertisement) error
	Get(ctx context.Context, id int64) (*Advertisement, error)
	GetByPlatformAdID(ctx context.Context, platformAdID string) (*Advertisement, error)

	// RecentByAccountAndQuantity is the fallback scan for advertisements
	// created within the last window on the same account with matching
	// quantity, used when an order's ad id cannot be resolved directly.
	RecentByAccountAndQuantity(ctx context.Context, accountID int64, quantity int64, since int64) ([]*Advertisement, error)

	CountActiveByAccount(ctx context.Context, accountID int64) (int, error)

	SetStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
}
