// 文件: pkg/account/memory_repo.go
package account

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu   sync.Mutex
	byID map[int64]*Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Account)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListEnabled(ctx context.Context) ([]*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Account
	for _, a := range r.byID {
		if !a.Disabled {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SetSessionCookie(ctx context.Context, id int64, cookie string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.SessionCookie = cookie
		a.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}

func (r *MemoryRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.Disabled = disabled
		a.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}
