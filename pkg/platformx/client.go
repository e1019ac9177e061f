// 文件: pkg/platformx/client.go
// Platform-X contract: HMAC-signed REST crypto P2P exchange.
// This package is the contract plus a minimal net/http + HMAC-SHA256
// implementation of the documented endpoints.

package platformx

import "context"

// Order status integers.
const (
	OrderStatusPaymentInProcessing = 10
	OrderStatusWaitingCoinTransfer = 20
	OrderStatusCompleted           = 30
	OrderStatusCancelled           = 40
	OrderStatusDispute             = 50
)

type Order struct {
	OrderID   string
	ItemID    string // advertisement id, may be absent
	UserID    string
	Amount    int64 // fiat amount in minor units
	Status    int
	CreatedAt int64
	Raw       map[string]any
}

type ChatMessage struct {
	MessageID   string
	UserID      string // sender's platform-x user id
	ContentType string // "text" | "image" | "pdf"
	Body        string
	MsgType     int // 0 = system message, 1 = user message
	SentAt      int64
}

// AdSpec is what Ad Placement submits to ad/create.
type AdSpec struct {
	Side            string // "SELL"
	Asset           string // "crypto"
	Fiat            string // "RUB"
	UnitPrice       int64
	Quantity        int64
	MinAmount       int64
	MaxAmount       int64
	PaymentMethods  []string
}

type Balance struct {
	Asset     string
	Available int64
}

// RetCodeError wraps a non-zero retCode from the
// `{retCode, retMsg, result}` envelope.
type RetCodeError struct {
	RetCode int
	RetMsg  string
}

func (e *RetCodeError) Error() string { return e.RetMsg }

// Transient classifies retCodes the retry/backoff policy should treat
// as transient rather than terminal.
func (e *RetCodeError) Transient() bool {
	switch e.RetCode {
	case 10006, 10429: // rate-limited / too-many-requests family
		return true
	default:
		return false
	}
}

// SignatureExpiredError marks a signature-expired / clock-skew response.
// It is returned to the caller as is: the client does not resync its
// clock or retry the request on it.
type SignatureExpiredError struct{ Cause error }

func (e *SignatureExpiredError) Error() string { return "platformx: signature expired" }
func (e *SignatureExpiredError) Unwrap() error { return e.Cause }

type Client interface {
	ListPendingOrders(ctx context.Context, statuses []int) ([]Order, error)
	OrderInfo(ctx context.Context, orderID string) (Order, error)
	ListMessages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error)
	SendMessage(ctx context.Context, orderID, body string, idempotencyToken string) (messageID string, err error)

	CreateAd(ctx context.Context, spec AdSpec) (adID string, err error)
	UpdateAd(ctx context.Context, adID string, spec AdSpec) error
	CancelAd(ctx context.Context, adID string) error

	ReleaseOrder(ctx context.Context, orderID string, idempotencyToken string) error

	WalletBalance(ctx context.Context, asset string) (Balance, error)

	// ServerTime reads the exchange's server-time endpoint for drift
	// measurement against the local clock.
	ServerTime(ctx context.Context) (unixMillis int64, err error)
}
