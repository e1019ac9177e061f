// 文件: pkg/chatmsg/memory_repo.go
package chatmsg

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

type MemoryRepository struct {
	mu       sync.Mutex
	byExtID  map[string]*ChatMessage
	byTxn    map[int64][]*ChatMessage
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byExtID: make(map[string]*ChatMessage),
		byTxn:   make(map[int64][]*ChatMessage),
	}
}

func (r *MemoryRepository) Upsert(ctx context.Context, m *ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byExtID[m.ExternalID]; exists {
		return nil
	}
	cp := *m
	r.byExtID[m.ExternalID] = &cp
	r.byTxn[m.TxnID] = append(r.byTxn[m.TxnID], &cp)
	return nil
}

func (r *MemoryRepository) ListByTxn(ctx context.Context, txnID int64) ([]*ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byTxn[txnID]
	out := make([]*ChatMessage, len(msgs))
	for i := range msgs {
		cp := *msgs[i]
		out[i] = &cp
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].SentAt < out[i].SentAt {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *MemoryRepository) LatestByTxn(ctx context.Context, txnID int64) (*ChatMessage, error) {
	ordered, _ := r.ListByTxn(ctx, txnID)
	if len(ordered) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return ordered[len(ordered)-1], nil
}

func (r *MemoryRepository) DeleteByTxn(ctx context.Context, txnID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byTxn[txnID] {
		delete(r.byExtID, m.ExternalID)
	}
	delete(r.byTxn, txnID)
	return nil
}
