// 文件: pkg/advertisement/memory_repo.go
package advertisement

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu   sync.Mutex
	byID map[int64]*Advertisement
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Advertisement)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Advertisement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Advertisement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) GetByPlatformAdID(ctx context.Context, platformAdID string) (*Advertisement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.PlatformAdID == platformAdID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) RecentByAccountAndQuantity(ctx context.Context, accountID int64, quantity int64, since int64) ([]*Advertisement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Advertisement
	for _, a := range r.byID {
		if a.AccountID == accountID && a.Quantity == quantity && a.CreatedAt >= since && a.Status == StatusOnline {
			cp := *a
			out = append(out, &cp)
		}
	}
	// newest first, matching the SQL repo's ORDER BY created_at DESC
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt > out[i].CreatedAt {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *MemoryRepository) CountActiveByAccount(ctx context.Context, accountID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.byID {
		if a.AccountID == accountID && a.Status == StatusOnline {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.Status = status
		a.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}
