// 文件: pkg/receipt/repository.go
package receipt

import "context"

type Repository interface {
	Create(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, id int64) (*Receipt, error)
	GetByEmailMessageID(ctx context.Context, emailMessageID string) (*Receipt, error)
	ListUnprocessed(ctx context.Context) ([]*Receipt, error)

	// MarkMatched CAS-marks an unprocessed Receipt as matched to
	// payoutID; it reports false if the receipt was already processed
	// by a concurrent tick.
	MarkMatched(ctx context.Context, id, payoutID int64) (bool, error)
	SetParseError(ctx context.Context, id int64, reason string) error
}
