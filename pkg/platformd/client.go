// 文件: pkg/platformd/client.go
// Platform-D contract: session-cookie HTTP disbursement platform.
// This package is the contract (interface + wire types) plus a minimal
// net/http implementation of the documented endpoints.

package platformd

import "context"

// RawPayout is the duck-typed payload returned by Platform-D, normalized
// at the edge into a typed record with unknown fields preserved in a
// raw blob for diagnostics.
type RawPayout struct {
	ExternalID    string
	AmountMinor   int64 // 0/absent before accept()
	Wallet        string
	Bank          string
	RecipientName string
	Status        int // 1=created,2=accepted,3=rejected,4=pending,5=accepted-waiting,7=completed
	Raw           map[string]any
}

// PayoutPage is one page of the
// GET /payments/payouts?page=&filters[status][]= response.
type PayoutPage struct {
	Data          []RawPayout
	Total         int
	CurrentPage   int
	HasNext       bool
}

// Action is one of the `POST /payments/payouts/{id}/action` verbs.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionApprove Action = "approve"
)

// Client is the contract every Account Registry handle for a Platform-D
// account must satisfy.
type Client interface {
	// Login performs POST /auth/basic/login and returns the session
	// cookie to persist across restarts.
	Login(ctx context.Context, loginEmail, password string) (sessionCookie string, err error)

	ListPayouts(ctx context.Context, page int, statuses []int) (PayoutPage, error)

	// Accept calls POST /payments/payouts/{id}/accept, which reveals the
	// previously-hidden amount.
	Accept(ctx context.Context, externalID string) (RawPayout, error)

	Action(ctx context.Context, externalID string, action Action) error

	// SetBalance is the quirky POST /balance/set Platform-D requires
	// on a periodic cadence to keep the displayed balance accurate.
	SetBalance(ctx context.Context, amountMinor int64) error
}

// SessionError distinguishes an expired/invalid session (HTTP 401) from
// any other failure. No caller acts on it: the Account Registry re-logs
// in only when the boot-time init task runs.
type SessionError struct {
	Cause error
}

func (e *SessionError) Error() string { return "platformd: session expired: " + e.Cause.Error() }
func (e *SessionError) Unwrap() error { return e.Cause }
