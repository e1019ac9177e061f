// 文件: pkg/account/repository.go
package account

import "context"

type Repository interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id int64) (*Account, error)
	ListEnabled(ctx context.Context) ([]*Account, error)
	SetSessionCookie(ctx context.Context, id int64, cookie string) error
	SetDisabled(ctx context.Context, id int64, disabled bool) error
}
