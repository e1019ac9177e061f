// 文件: pkg/receipt/memory_repo.go
package receipt

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu   sync.Mutex
	byID map[int64]*Receipt
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Receipt)}
}

func (r *MemoryRepository) Create(ctx context.Context, rc *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rc
	r.byID[rc.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rc
	return &cp, nil
}

func (r *MemoryRepository) GetByEmailMessageID(ctx context.Context, emailMessageID string) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.byID {
		if rc.EmailMessageID == emailMessageID {
			cp := *rc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) ListUnprocessed(ctx context.Context) ([]*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Receipt
	for _, rc := range r.byID {
		if !rc.Processed && rc.ParseError == "" {
			cp := *rc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkMatched(ctx context.Context, id, payoutID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.byID[id]
	if !ok || rc.Processed {
		return false, nil
	}
	rc.Processed = true
	rc.PayoutID = payoutID
	rc.UpdatedAt = time.Now().UnixMilli()
	return true, nil
}

func (r *MemoryRepository) SetParseError(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rc, ok := r.byID[id]; ok {
		rc.ParseError = reason
		rc.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}
