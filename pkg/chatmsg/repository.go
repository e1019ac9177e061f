// 文件: pkg/chatmsg/repository.go
package chatmsg

import "context"

type Repository interface {
	// Upsert inserts a message or no-ops if ExternalID already exists,
	// so re-polling the same chat window never duplicates a row.
	Upsert(ctx context.Context, m *ChatMessage) error
	ListByTxn(ctx context.Context, txnID int64) ([]*ChatMessage, error)
	LatestByTxn(ctx context.Context, txnID int64) (*ChatMessage, error)
	DeleteByTxn(ctx context.Context, txnID int64) error
}
