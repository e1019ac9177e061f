// 文件: pkg/eventbus/event.go
// Event Bus: publishes state-change events for WebSocket subscribers
// (the UI and operators), grouped by user-room and account-room.

package eventbus

import "encoding/json"

// Type enumerates the named events every component may publish.
type Type string

const (
	TypeTransactionUpdated     Type = "transaction:updated"
	TypeTransactionDeleted     Type = "transaction:deleted"
	TypeAdvertisementCreated   Type = "advertisement:created"
	TypeAdvertisementUpdated   Type = "advertisement:updated"
	TypeAdvertisementDeleted   Type = "advertisement:deleted"
	TypeAccountStatusChange    Type = "account_status_change"
	TypeInitializationProgress Type = "initialization_progress"
	TypeStatsUpdate            Type = "stats_update"

	// TypeOperatorAlert carries a human-readable, machine-tagged notice
	// for conditions the state machine cannot resolve on its own. The
	// only kind published is "AMOUNT_MISMATCH", by Order Discovery. Data
	// is an OperatorAlert.
	TypeOperatorAlert Type = "operator:alert"
)

// OperatorAlert is the payload of a TypeOperatorAlert event.
type OperatorAlert struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	TransactionID int64  `json:"transaction_id,omitempty"`
}

// Room scopes delivery: an event belongs to at most one user-room
// (operator-facing, unscoped by account) or account-room (scoped to one
// trading account), never both. The zero Room, used for boot progress
// and scheduler stats, names neither.
type Room struct {
	User    string // non-empty for a user-room event
	Account int64  // non-zero for an account-room event
}

// Event is the wire shape: {type, data, timestamp}, exactly as spec'd.
type Event struct {
	Type      Type   `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
	room      Room
}

func New(typ Type, room Room, data any, timestampMillis int64) Event {
	return Event{Type: typ, Data: data, Timestamp: timestampMillis, room: room}
}

func (e Event) Room() Room { return e.room }

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
