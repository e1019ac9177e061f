// 文件: pkg/payout/memory_repo.go
package payout

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu   sync.Mutex
	byID map[int64]*Payout
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Payout)}
}

func (r *MemoryRepository) Create(ctx context.Context, p *Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) GetByExternalID(ctx context.Context, externalID string) (*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) ListAccepted(ctx context.Context) ([]*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payout
	for _, p := range r.byID {
		if p.Decision == DecisionAccepted {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListAcceptedWithoutTransaction(ctx context.Context) ([]*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payout
	for _, p := range r.byID {
		if p.Decision == DecisionAccepted && !p.HasTransaction {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListAcceptedUnmatchedReceipt(ctx context.Context) ([]*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payout
	for _, p := range r.byID {
		if p.Decision == DecisionAccepted && p.ReceiptID == 0 {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) MatchReceipt(ctx context.Context, id, receiptID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.ReceiptID != 0 {
		return false, nil
	}
	p.ReceiptID = receiptID
	p.UpdatedAt = time.Now().UnixMilli()
	return true, nil
}

func (r *MemoryRepository) ListByExternalStatus(ctx context.Context, status int) ([]*Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payout
	for _, p := range r.byID {
		if p.ExternalStatus == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Accept(ctx context.Context, id int64, amountMinor int64, wallet, bank, recipientName string, acceptedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.AmountMinor = amountMinor
	p.Wallet = wallet
	p.Bank = bank
	p.RecipientName = recipientName
	p.Decision = DecisionAccepted
	p.AcceptedAt = acceptedAt
	p.UpdatedAt = time.Now().UnixMilli()
	return nil
}

func (r *MemoryRepository) UpdateExternalStatus(ctx context.Context, id int64, status int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.ExternalStatus = status
		p.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}

func (r *MemoryRepository) MarkHasTransaction(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.HasTransaction = true
	}
	return nil
}

func (r *MemoryRepository) ClearHasTransaction(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.HasTransaction = false
	}
	return nil
}
