// 文件: pkg/txn/memory_repo.go
// In-memory fake Repository: no mocking framework, just a map guarded by
// a mutex, used by every other package's tests that depend on
// txn.Repository.

package txn

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu   sync.Mutex
	byID map[int64]*Transaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Transaction)}
}

func (r *MemoryRepository) Create(ctx context.Context, t *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) GetByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.OrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) GetByPayoutID(ctx context.Context, payoutID int64) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.PayoutID == payoutID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) GetByAdvertisementID(ctx context.Context, adID int64) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.AdvertisementID == adID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) ListNonTerminal(ctx context.Context) ([]*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Transaction
	for _, t := range r.byID {
		if !t.Status.Terminal() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListByStatus(ctx context.Context, status Status) ([]*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Transaction
	for _, t := range r.byID {
		if t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListWithOrderIDs(ctx context.Context) ([]*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Transaction
	for _, t := range r.byID {
		if t.OrderID != "" {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) LinkOrder(ctx context.Context, adID int64, orderID string, newStatus Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.AdvertisementID == adID && t.OrderID == "" {
			t.OrderID = orderID
			t.Status = newStatus
			t.UpdatedAt = time.Now().UnixMilli()
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) Transition(ctx context.Context, id int64, expected, to Status) (bool, error) {
	if !Allowed(expected, to) {
		return false, ErrIllegalTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status != expected {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UnixMilli()
	return true, nil
}

func (r *MemoryRepository) ForceComplete(ctx context.Context, id int64, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status.Terminal() {
		return false, nil
	}
	t.Status = StatusCompleted
	t.FailureReason = reason
	t.UpdatedAt = time.Now().UnixMilli()
	return true, nil
}

func (r *MemoryRepository) SetChatStep(ctx context.Context, id int64, expectedStep, newStep int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.ChatStep != expectedStep {
		return false, nil
	}
	t.ChatStep = newStep
	t.UpdatedAt = time.Now().UnixMilli()
	return true, nil
}

func (r *MemoryRepository) SetFailureReason(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		t.FailureReason = reason
	}
	return nil
}

func (r *MemoryRepository) Flag(ctx context.Context, id int64, flagged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		t.FlaggedReview = flagged
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}
